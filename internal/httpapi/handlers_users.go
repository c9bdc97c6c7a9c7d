package httpapi

import (
	"net/http"

	"agentplane/internal/apperr"
	"agentplane/internal/store"
)

func (s *Server) handleGetSelf(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r.Context()))
}

type budgetResponse struct {
	PeriodStart string `json:"period_start"`
	BudgetCents int64  `json:"budget_cents"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	period := store.CurrentPeriodStart(timeNowUTC())
	cents, err := s.budgets.Get(r.Context(), user.ID, period)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, budgetResponse{PeriodStart: period.Format("2006-01-02"), BudgetCents: cents})
}

type setBudgetRequest struct {
	BudgetCents int64 `json:"budget_cents"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	var req setBudgetRequest
	if err := decodeJSON(r, &req); err != nil || req.BudgetCents < 0 {
		apperr.WriteError(w, apperr.BadRequest("budget_cents must be a non-negative integer"))
		return
	}
	period := store.CurrentPeriodStart(timeNowUTC())
	if err := s.budgets.Set(r.Context(), user.ID, period, req.BudgetCents); err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, budgetResponse{PeriodStart: period.Format("2006-01-02"), BudgetCents: req.BudgetCents})
}
