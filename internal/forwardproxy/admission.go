package forwardproxy

import (
	"context"
	"fmt"

	"agentplane/internal/apperr"
	"agentplane/internal/billing"
	"agentplane/internal/metrics"
	"agentplane/internal/provider"
	"agentplane/internal/store"
)

// admit resolves the agent's VPS and decides whether it may use the
// forward proxy right now. A fixed-allocation VPS is never denied here —
// that provider's users are only ever gated by the periodic monitor
// sweep, since they're billed by allocation, not usage.
func (s *Server) admit(ctx context.Context, agent *store.Agent) *apperr.Error {
	if agent.VpsID == nil {
		metrics.RecordForwardProxyDenial("no_vps")
		return apperr.Forbidden("agent has no vps")
	}
	vps, err := s.vpses.Get(ctx, *agent.VpsID)
	if err != nil {
		return apperr.Database(err)
	}

	providerName, ok := provider.ParseName(vps.Provider)
	if !ok {
		return apperr.Internal(fmt.Sprintf("unknown provider %q on vps", vps.Provider))
	}
	if provider.MeteredResourcesFor(providerName) == provider.MeteredBandwidthOnly {
		return nil
	}

	user, err := s.users.Get(ctx, vps.UserID)
	if err != nil {
		return apperr.Database(err)
	}
	if user.PlanID == nil {
		metrics.RecordForwardProxyDenial("no_plan")
		return apperr.Forbidden("no plan assigned")
	}
	plan, err := s.plans.Get(ctx, *user.PlanID)
	if err != nil {
		return apperr.Database(err)
	}

	usage, err := s.ledger.GetUserAggregate(ctx, user.ID)
	if err != nil {
		return apperr.Database(err)
	}
	if billing.WithinLimits(usage, plan) {
		return nil
	}

	budget, err := s.budgets.Get(ctx, user.ID, store.CurrentPeriodStart(nowUTC()))
	if err != nil {
		return apperr.Database(err)
	}
	if billing.OverageCost(usage, plan) > budget {
		metrics.RecordForwardProxyDenial("budget_exhausted")
		return apperr.Forbidden("plan limits exceeded and overage budget exhausted")
	}
	return nil
}
