// Package billing computes overage cost: what a user owes for usage beyond
// their plan's included limits, in cents. This is the one place genuinely
// sensitive to rounding, so it's kept as a small, directly testable pure
// function rather than inlined into a handler.
package billing

import (
	"math"

	"agentplane/internal/store"
)

const (
	bytesPerGB         = 1_073_741_824.0
	msPerHour          = 3_600_000.0
	mbSecondsPerGBHour = 1024.0 * 3600.0
)

// OverageCost returns what usage beyond plan costs, in cents, rounded up
// to the next whole cent. Each resource axis is priced independently and
// the three costs are summed before rounding, not after.
func OverageCost(usage *store.AggregateUsage, plan *store.Plan) int64 {
	bwCost := overUnit(usage.BandwidthBytes, plan.MaxBandwidthBytes, bytesPerGB) * float64(plan.OverageBandwidthCostPerGBCents)
	cpuCost := overUnit(usage.CPUUsedMs, plan.MaxCPUMs, msPerHour) * float64(plan.OverageCPUCostPerHourCents)
	memCost := overUnit(usage.MemoryUsedMBSeconds, plan.MaxMemoryMBSeconds, mbSecondsPerGBHour) * float64(plan.OverageMemoryCostPerGBHourCents)

	return int64(math.Ceil(bwCost + cpuCost + memCost))
}

func overUnit(used, limit int64, divisor float64) float64 {
	over := used - limit
	if over <= 0 {
		return 0
	}
	return float64(over) / divisor
}

// WithinLimits reports whether every metered axis is at or under the
// plan's included allowance — the quick check used before falling through
// to the more expensive overage-budget comparison. Storage is a per-VPS
// gauge, not a period-aggregated axis, and carries no overage cost term;
// it is not checked here or at provisioning, only reported.
func WithinLimits(usage *store.AggregateUsage, plan *store.Plan) bool {
	return usage.BandwidthBytes <= plan.MaxBandwidthBytes &&
		usage.CPUUsedMs <= plan.MaxCPUMs &&
		usage.MemoryUsedMBSeconds <= plan.MaxMemoryMBSeconds
}

// Allowed reports whether a user may continue operating: either every axis
// is within plan limits, or the cost of the overage is covered by their
// budget for the period.
func Allowed(usage *store.AggregateUsage, plan *store.Plan, budgetCents int64) bool {
	if WithinLimits(usage, plan) {
		return true
	}
	return OverageCost(usage, plan) <= budgetCents
}
