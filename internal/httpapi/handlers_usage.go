package httpapi

import (
	"net/http"

	"agentplane/internal/apperr"
	"agentplane/internal/billing"
	"agentplane/internal/store"
)

type agentUsageResponse struct {
	Vps              *store.VpsUsagePeriod `json:"vps"`
	UserAggregate    *store.AggregateUsage `json:"user_aggregate"`
	StorageUsed      int64                 `json:"storage_used_bytes"`
	OverageCostCents int64                 `json:"overage_cost_cents"`
	BudgetCents      int64                 `json:"budget_cents"`
}

func (s *Server) handleAgentUsage(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	agent, err := s.agents.GetOwned(r.Context(), agentID, user.ID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	if agent.VpsID == nil {
		apperr.WriteError(w, apperr.NotFound())
		return
	}

	periodStart := store.CurrentPeriodStart(timeNowUTC())
	vpsUsage, err := s.ledger.GetCurrent(r.Context(), *agent.VpsID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	aggregate, err := s.ledger.GetUserAggregate(r.Context(), user.ID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	storageUsed, err := s.usage.StorageForUser(r.Context(), user.ID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}

	resp := agentUsageResponse{
		Vps:           vpsUsage,
		UserAggregate: aggregate,
		StorageUsed:   storageUsed,
	}
	if user.PlanID != nil {
		if plan, err := s.plans.Get(r.Context(), *user.PlanID); err == nil {
			resp.OverageCostCents = billing.OverageCost(aggregate, plan)
		}
	}
	budgetCents, err := s.budgets.Get(r.Context(), user.ID, periodStart)
	if err == nil {
		resp.BudgetCents = budgetCents
	}
	writeJSON(w, http.StatusOK, resp)
}
