package billing

import (
	"testing"

	"agentplane/internal/store"
)

func plan() *store.Plan {
	return &store.Plan{
		MaxBandwidthBytes:               100 * 1_073_741_824, // 100 GB
		MaxCPUMs:                        10 * 3_600_000,      // 10 hours
		MaxMemoryMBSeconds:              10 * 1024 * 3600,    // 10 GB-hours
		OverageBandwidthCostPerGBCents:  10,
		OverageCPUCostPerHourCents:      50,
		OverageMemoryCostPerGBHourCents: 20,
	}
}

func TestOverageCostZeroWithinLimits(t *testing.T) {
	usage := &store.AggregateUsage{
		BandwidthBytes:      50 * 1_073_741_824,
		CPUUsedMs:           5 * 3_600_000,
		MemoryUsedMBSeconds: 5 * 1024 * 3600,
	}
	if got := OverageCost(usage, plan()); got != 0 {
		t.Errorf("OverageCost = %d, want 0", got)
	}
}

func TestOverageCostBandwidthOnly(t *testing.T) {
	usage := &store.AggregateUsage{
		BandwidthBytes: 110 * 1_073_741_824, // 10 GB over
	}
	// 10 GB * 10 cents/GB = 100 cents
	if got := OverageCost(usage, plan()); got != 100 {
		t.Errorf("OverageCost = %d, want 100", got)
	}
}

func TestOverageCostRoundsUp(t *testing.T) {
	p := plan()
	usage := &store.AggregateUsage{
		BandwidthBytes: plan().MaxBandwidthBytes + 1, // 1 byte over
	}
	// (1 / 1073741824) * 10 cents ≈ 0.0000000093, ceil -> 1
	if got := OverageCost(usage, p); got != 1 {
		t.Errorf("OverageCost = %d, want 1 (rounds a fractional cent up)", got)
	}
}

func TestOverageCostSumsAllThreeAxes(t *testing.T) {
	p := plan()
	usage := &store.AggregateUsage{
		BandwidthBytes:      p.MaxBandwidthBytes + 1_073_741_824, // 1 GB over -> 10 cents
		CPUUsedMs:           p.MaxCPUMs + 3_600_000,              // 1 hour over -> 50 cents
		MemoryUsedMBSeconds: p.MaxMemoryMBSeconds + 1024*3600,    // 1 GB-hour over -> 20 cents
	}
	if got := OverageCost(usage, p); got != 80 {
		t.Errorf("OverageCost = %d, want 80", got)
	}
}

func TestWithinLimits(t *testing.T) {
	p := plan()
	usage := &store.AggregateUsage{BandwidthBytes: p.MaxBandwidthBytes}
	if !WithinLimits(usage, p) {
		t.Error("usage exactly at the limit should be within limits")
	}
	usage.BandwidthBytes++
	if WithinLimits(usage, p) {
		t.Error("usage one byte over the limit should not be within limits")
	}
}

func TestAllowedFallsBackToBudget(t *testing.T) {
	p := plan()
	usage := &store.AggregateUsage{BandwidthBytes: p.MaxBandwidthBytes + 1_073_741_824} // 10 cents over
	if Allowed(usage, p, 5) {
		t.Error("overage of 10 cents should not be allowed by a 5-cent budget")
	}
	if !Allowed(usage, p, 10) {
		t.Error("overage of 10 cents should be allowed by a 10-cent budget")
	}
}
