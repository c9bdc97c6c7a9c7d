// Package ledger is the usage ledger: durable per-(VPS, month) counters
// for bandwidth, CPU, and memory, with an optional Redis-backed fast path
// absorbing the forward proxy's and gateway proxy's bursty,
// high-frequency byte-count writes before they're periodically drained
// into the durable store.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"agentplane/internal/logger"
	"agentplane/internal/store"
)

const dirtySetKey = "agentplane:ledger:dirty"

func hashKey(vpsID uuid.UUID) string { return "agentplane:ledger:usage:" + vpsID.String() }

const (
	fieldBandwidth = "bandwidth_bytes"
	fieldCPU       = "cpu_ms"
	fieldMemory    = "mem_mb_seconds"
)

// Ledger is the single entry point every usage-recording caller in the
// control plane goes through: the forward proxy, the gateway proxy, and
// the enforcement monitor's metrics poll.
type Ledger struct {
	usage *store.UsageRepo
	redis *redis.Client // nil disables the fast path; writes go straight to store
}

// New builds a Ledger. rdb may be nil, in which case every increment is
// written straight through to Postgres — correct, just not optimized for
// the proxy's per-byte write volume.
func New(usage *store.UsageRepo, rdb *redis.Client) *Ledger {
	return &Ledger{usage: usage, redis: rdb}
}

// AddBandwidth adds delta (non-negative) bytes to vpsID's current-period
// bandwidth counter.
func (l *Ledger) AddBandwidth(ctx context.Context, vpsID uuid.UUID, delta int64) error {
	if delta <= 0 {
		return nil
	}
	return l.add(ctx, vpsID, delta, 0, 0)
}

// AddCPUMemory adds delta (non-negative, caller-clamped) cpu/memory usage
// to vpsID's current-period counters.
func (l *Ledger) AddCPUMemory(ctx context.Context, vpsID uuid.UUID, cpuDeltaMs, memDeltaMBSeconds int64) error {
	if cpuDeltaMs < 0 {
		cpuDeltaMs = 0
	}
	if memDeltaMBSeconds < 0 {
		memDeltaMBSeconds = 0
	}
	if cpuDeltaMs == 0 && memDeltaMBSeconds == 0 {
		return nil
	}
	return l.add(ctx, vpsID, 0, cpuDeltaMs, memDeltaMBSeconds)
}

func (l *Ledger) add(ctx context.Context, vpsID uuid.UUID, bwDelta, cpuDelta, memDelta int64) error {
	if l.redis == nil {
		return l.usage.AddUsage(ctx, vpsID, store.CurrentPeriodStart(nowUTC()), bwDelta, cpuDelta, memDelta)
	}

	pipe := l.redis.Pipeline()
	if bwDelta != 0 {
		pipe.HIncrBy(ctx, hashKey(vpsID), fieldBandwidth, bwDelta)
	}
	if cpuDelta != 0 {
		pipe.HIncrBy(ctx, hashKey(vpsID), fieldCPU, cpuDelta)
	}
	if memDelta != 0 {
		pipe.HIncrBy(ctx, hashKey(vpsID), fieldMemory, memDelta)
	}
	pipe.SAdd(ctx, dirtySetKey, vpsID.String())
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("ledger: redis pipeline: %w", err)
	}
	return nil
}

// GetCurrent returns the current period's durable counters for a VPS. If
// the Redis fast path is enabled, a request made within the flush
// interval may momentarily lag what has actually been recorded — callers
// that need an exact figure should flush first.
func (l *Ledger) GetCurrent(ctx context.Context, vpsID uuid.UUID) (*store.VpsUsagePeriod, error) {
	return l.usage.ForVps(ctx, vpsID, store.CurrentPeriodStart(nowUTC()))
}

// GetUserAggregate sums usage across a user's non-destroyed VPSes for the
// current period, the figure admission control and the monitor compare
// against plan limits and overage budget.
func (l *Ledger) GetUserAggregate(ctx context.Context, userID uuid.UUID) (*store.AggregateUsage, error) {
	return l.usage.AggregateForUser(ctx, userID, store.CurrentPeriodStart(nowUTC()))
}

// Flush drains every dirty Redis-backed counter into the durable store.
// A VPS's id leaves the dirty set before its hash is read and deleted in
// one MULTI/EXEC, so an increment landing mid-drain is either part of this
// drain or re-marks the id for the next tick; none is counted twice. It is
// best-effort: a failed store write is logged and those deltas are dropped.
func (l *Ledger) Flush(ctx context.Context) error {
	if l.redis == nil {
		return nil
	}

	ids, err := l.redis.SMembers(ctx, dirtySetKey).Result()
	if err != nil {
		return fmt.Errorf("ledger: list dirty vpses: %w", err)
	}

	period := store.CurrentPeriodStart(nowUTC())
	for _, raw := range ids {
		vpsID, err := uuid.Parse(raw)
		if err != nil {
			logger.Error("ledger: dirty set contained invalid vps id %q: %v", raw, err)
			l.redis.SRem(ctx, dirtySetKey, raw)
			continue
		}

		key := hashKey(vpsID)
		l.redis.SRem(ctx, dirtySetKey, raw)
		var getCmd *redis.MapStringStringCmd
		if _, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			getCmd = pipe.HGetAll(ctx, key)
			pipe.Del(ctx, key)
			return nil
		}); err != nil {
			logger.Error("ledger: read %s: %v", key, err)
			l.redis.SAdd(ctx, dirtySetKey, raw)
			continue
		}
		fields := getCmd.Val()

		bw := parseField(fields[fieldBandwidth])
		cpu := parseField(fields[fieldCPU])
		mem := parseField(fields[fieldMemory])
		if bw == 0 && cpu == 0 && mem == 0 {
			continue
		}
		if err := l.usage.AddUsage(ctx, vpsID, period, bw, cpu, mem); err != nil {
			logger.Error("ledger: flush %s into store: %v", vpsID, err)
		}
	}
	return nil
}
