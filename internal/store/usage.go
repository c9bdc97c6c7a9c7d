package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageRepo accumulates metered usage per VPS per calendar-month period.
type UsageRepo struct {
	db *gorm.DB
}

func NewUsageRepo(db *gorm.DB) *UsageRepo { return &UsageRepo{db: db} }

// CurrentPeriodStart returns the first instant of the current calendar
// month in UTC, the period boundary the monitor and usage queries key on.
func CurrentPeriodStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddUsage increments a VPS's usage-period row in place, creating it if
// this is the first observation for the period. Never overwrites: a
// concurrent monitor tick and a concurrent request can both add safely.
func (r *UsageRepo) AddUsage(ctx context.Context, vpsID uuid.UUID, periodStart time.Time, bandwidthBytes, cpuMs, memMBSeconds int64) error {
	row := VpsUsagePeriod{
		VpsID:               vpsID,
		PeriodStart:         periodStart,
		BandwidthBytes:      bandwidthBytes,
		CPUUsedMs:           cpuMs,
		MemoryUsedMBSeconds: memMBSeconds,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vps_id"}, {Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"bandwidth_bytes":        gorm.Expr("vps_usage_periods.bandwidth_bytes + ?", bandwidthBytes),
			"cpu_used_ms":            gorm.Expr("vps_usage_periods.cpu_used_ms + ?", cpuMs),
			"memory_used_mb_seconds": gorm.Expr("vps_usage_periods.memory_used_mb_seconds + ?", memMBSeconds),
		}),
	}).Create(&row).Error
}

// ForVps returns the usage-period row for a single VPS, or a zeroed row if
// nothing has been recorded yet this period.
func (r *UsageRepo) ForVps(ctx context.Context, vpsID uuid.UUID, periodStart time.Time) (*VpsUsagePeriod, error) {
	var row VpsUsagePeriod
	err := r.db.WithContext(ctx).First(&row, "vps_id = ? AND period_start = ?", vpsID, periodStart).Error
	if err == gorm.ErrRecordNotFound {
		return &VpsUsagePeriod{VpsID: vpsID, PeriodStart: periodStart}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// AggregateForUser sums usage across every non-destroyed VPS a user owns
// for the given period — the figure plan-limit and overage checks run
// against.
func (r *UsageRepo) AggregateForUser(ctx context.Context, userID uuid.UUID, periodStart time.Time) (*AggregateUsage, error) {
	var agg AggregateUsage
	err := r.db.WithContext(ctx).
		Model(&VpsUsagePeriod{}).
		Joins("JOIN vpses ON vpses.id = vps_usage_periods.vps_id").
		Where("vpses.user_id = ? AND vps_usage_periods.period_start = ? AND vpses.state != ?", userID, periodStart, VpsDestroyed).
		Select(
			"COALESCE(SUM(vps_usage_periods.bandwidth_bytes), 0) AS bandwidth_bytes",
			"COALESCE(SUM(vps_usage_periods.cpu_used_ms), 0) AS cpu_used_ms",
			"COALESCE(SUM(vps_usage_periods.memory_used_mb_seconds), 0) AS memory_used_mb_seconds",
		).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// StorageForUser sums the current (non-cumulative) storage footprint across
// a user's non-destroyed VPSes.
func (r *UsageRepo) StorageForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&Vps{}).
		Where("user_id = ? AND state != ?", userID, VpsDestroyed).
		Select("COALESCE(SUM(storage_used_bytes), 0)").
		Scan(&total).Error
	return total, err
}
