// Package monitor implements the enforcement monitor: a periodic sweep
// that polls provider metrics into the usage ledger, then stops
// fixed-allocation VPSes whose owning user has exceeded both their plan
// limits and overage budget.
package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agentplane/internal/billing"
	"agentplane/internal/ledger"
	"agentplane/internal/logger"
	"agentplane/internal/metrics"
	"agentplane/internal/provider"
	"agentplane/internal/store"
)

// Monitor owns the ticker loop and the repositories it reads/writes each
// tick.
type Monitor struct {
	vpses     *store.VpsRepo
	users     *store.UserRepo
	plans     *store.PlanRepo
	budgets   *store.BudgetRepo
	ledger    *ledger.Ledger
	providers *provider.Registry
}

func New(
	vpses *store.VpsRepo,
	users *store.UserRepo,
	plans *store.PlanRepo,
	budgets *store.BudgetRepo,
	l *ledger.Ledger,
	providers *provider.Registry,
) *Monitor {
	return &Monitor{vpses: vpses, users: users, plans: plans, budgets: budgets, ledger: l, providers: providers}
}

// Run ticks every interval until ctx is cancelled. Each tick is
// independent: a tick's failure logs per-stage and the next tick
// proceeds.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("[Monitor] started, interval=%s", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	metrics.RecordMonitorTick()

	vpses, err := m.vpses.ListNonDestroyed(ctx)
	if err != nil {
		logger.Error("[Monitor] list vpses: %v", err)
		metrics.RecordMonitorError("list_vpses")
		return
	}

	m.pollMetrics(ctx, vpses)
	m.enforce(ctx, vpses)
}

// pollMetrics asks each Running VPS's provider for its current absolute
// cpu/memory counters, computes a non-negative delta against the last
// stored absolute value, and records the delta into the usage ledger
// while persisting the new absolute values onto the Vps row.
func (m *Monitor) pollMetrics(ctx context.Context, vpses []store.Vps) {
	for _, vps := range vpses {
		if vps.State != store.VpsRunning || vps.ProviderVMID == nil {
			continue
		}
		providerName, ok := provider.ParseName(vps.Provider)
		if !ok {
			continue
		}
		metered := provider.MeteredResourcesFor(providerName)
		if !metered.CPU && !metered.Memory {
			continue
		}
		backend, ok := m.providers.Get(providerName)
		if !ok {
			continue
		}

		usage, err := backend.Metrics(ctx, provider.Id(*vps.ProviderVMID))
		if err != nil {
			logger.Error("[Monitor] metrics poll for vps %s: %v", vps.ID, err)
			metrics.RecordMonitorError("poll_metrics")
			continue
		}

		var oldCPU, oldMem int64
		if vps.CPUUsedMs != nil {
			oldCPU = *vps.CPUUsedMs
		}
		if vps.MemoryUsedMBSeconds != nil {
			oldMem = *vps.MemoryUsedMBSeconds
		}

		cpuDelta := nonNegativeDelta(usage.CPUMs, oldCPU)
		memDelta := nonNegativeDelta(usage.MemoryMBSeconds, oldMem)

		if cpuDelta > 0 || memDelta > 0 {
			if err := m.ledger.AddCPUMemory(ctx, vps.ID, cpuDelta, memDelta); err != nil {
				logger.Error("[Monitor] record cpu/mem delta for vps %s: %v", vps.ID, err)
				metrics.RecordMonitorError("record_usage")
			}
		}
		if err := m.vpses.SetCPUAndMemoryAbsolute(ctx, vps.ID, usage.CPUMs, usage.MemoryMBSeconds); err != nil {
			logger.Error("[Monitor] persist absolute cpu/mem for vps %s: %v", vps.ID, err)
			metrics.RecordMonitorError("persist_absolute")
		}
		if usage.StorageBytes > 0 {
			if err := m.vpses.SetStorageUsed(ctx, vps.ID, usage.StorageBytes); err != nil {
				logger.Error("[Monitor] persist storage for vps %s: %v", vps.ID, err)
				metrics.RecordMonitorError("persist_storage")
			}
		}
	}
}

// nonNegativeDelta clamps a counter delta: a provider's counter may
// reset across a restart, in which case the delta is clamped to zero
// rather than going negative.
func nonNegativeDelta(newVal, oldVal int64) int64 {
	if newVal > oldVal {
		return newVal - oldVal
	}
	return 0
}

// enforce stops every Running fixed-allocation VPS for a user whose
// aggregate usage exceeds both their plan limits and overage budget.
// Elastic/sprite providers are intentionally not swept here; they are
// gated per-request by the forward proxy's admission check.
func (m *Monitor) enforce(ctx context.Context, vpses []store.Vps) {
	byUser := make(map[uuid.UUID][]store.Vps)
	for _, vps := range vpses {
		if vps.State != store.VpsRunning {
			continue
		}
		providerName, ok := provider.ParseName(vps.Provider)
		if !ok {
			continue
		}
		if provider.MeteredResourcesFor(providerName) != provider.MeteredBandwidthOnly {
			continue
		}
		byUser[vps.UserID] = append(byUser[vps.UserID], vps)
	}

	for userID, userVpses := range byUser {
		m.enforceUser(ctx, userID, userVpses)
	}
}

func (m *Monitor) enforceUser(ctx context.Context, userID uuid.UUID, fixedVpses []store.Vps) {
	user, err := m.users.Get(ctx, userID)
	if err != nil {
		logger.Error("[Monitor] load user %s: %v", userID, err)
		metrics.RecordMonitorError("load_user")
		return
	}
	if user.PlanID == nil {
		return
	}
	plan, err := m.plans.Get(ctx, *user.PlanID)
	if err != nil {
		logger.Error("[Monitor] load plan for user %s: %v", userID, err)
		metrics.RecordMonitorError("load_plan")
		return
	}

	usage, err := m.ledger.GetUserAggregate(ctx, userID)
	if err != nil {
		logger.Error("[Monitor] aggregate usage for user %s: %v", userID, err)
		metrics.RecordMonitorError("aggregate_usage")
		return
	}
	if billing.WithinLimits(usage, plan) {
		return
	}

	budget, err := m.budgets.Get(ctx, userID, store.CurrentPeriodStart(nowUTC()))
	if err != nil {
		logger.Error("[Monitor] load budget for user %s: %v", userID, err)
		metrics.RecordMonitorError("load_budget")
		return
	}
	if billing.OverageCost(usage, plan) <= budget {
		return
	}

	for _, vps := range fixedVpses {
		backend, ok := m.providers.Get(provider.Name(vps.Provider))
		if !ok || vps.ProviderVMID == nil {
			continue
		}
		if err := backend.Stop(ctx, provider.Id(*vps.ProviderVMID)); err != nil {
			logger.Error("[Monitor] stop vps %s: %v", vps.ID, err)
			metrics.RecordMonitorError("stop_vps")
			continue
		}
		if err := m.vpses.SetState(ctx, vps.ID, store.VpsStopped); err != nil {
			logger.Error("[Monitor] set vps %s stopped: %v", vps.ID, err)
			metrics.RecordMonitorError("set_state")
			continue
		}
		metrics.RecordMonitorVpsStopped()
		logger.Warn("[Monitor] stopped vps %s for user %s: plan+budget exceeded", vps.ID, userID)
	}
}

func nowUTC() time.Time { return time.Now().UTC() }
