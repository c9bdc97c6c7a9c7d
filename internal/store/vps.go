package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VpsRepo provides query access to VPS rows.
type VpsRepo struct {
	db *gorm.DB
}

func NewVpsRepo(db *gorm.DB) *VpsRepo { return &VpsRepo{db: db} }

func (r *VpsRepo) Create(ctx context.Context, v *Vps) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *VpsRepo) Get(ctx context.Context, id uuid.UUID) (*Vps, error) {
	var v Vps
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// CountForUser counts a user's non-destroyed VPSes, the figure checked
// against Plan.MaxVpses before provisioning a new one.
func (r *VpsRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Vps{}).
		Where("user_id = ? AND state != ?", userID, VpsDestroyed).
		Count(&count).Error
	return count, err
}

func (r *VpsRepo) SetState(ctx context.Context, id uuid.UUID, state VpsState) error {
	return r.db.WithContext(ctx).Model(&Vps{}).Where("id = ?", id).Update("state", state).Error
}

func (r *VpsRepo) SetProviderInfo(ctx context.Context, id uuid.UUID, providerVMID, address *string, state VpsState) error {
	return r.db.WithContext(ctx).Model(&Vps{}).Where("id = ?", id).Updates(map[string]interface{}{
		"provider_vm_id": providerVMID,
		"address":        address,
		"state":          state,
	}).Error
}

func (r *VpsRepo) SetStorageUsed(ctx context.Context, id uuid.UUID, bytes int64) error {
	return r.db.WithContext(ctx).Model(&Vps{}).Where("id = ?", id).Update("storage_used_bytes", bytes).Error
}

// SetCPUAndMemoryAbsolute records the provider's current absolute cpu/mem
// counters, used by the monitor to compute positive-only deltas between
// polls without needing a separate "last observed" table.
func (r *VpsRepo) SetCPUAndMemoryAbsolute(ctx context.Context, id uuid.UUID, cpuMs, memMBSeconds int64) error {
	return r.db.WithContext(ctx).Model(&Vps{}).Where("id = ?", id).Updates(map[string]interface{}{
		"cpu_used_ms":            cpuMs,
		"memory_used_mb_seconds": memMBSeconds,
	}).Error
}

// ListNonDestroyed returns every VPS the monitor should poll, i.e. every
// row not already in the terminal Destroyed state.
func (r *VpsRepo) ListNonDestroyed(ctx context.Context) ([]Vps, error) {
	var vpses []Vps
	err := r.db.WithContext(ctx).Where("state != ?", VpsDestroyed).Find(&vpses).Error
	return vpses, err
}

// ListStuckProvisioning returns every VPS still in Provisioning state
// whose last update predates the cutoff, the candidate set for the admin
// cleanup-stuck sweep.
func (r *VpsRepo) ListStuckProvisioning(ctx context.Context, olderThan time.Duration) ([]Vps, error) {
	var vpses []Vps
	cutoff := time.Now().UTC().Add(-olderThan)
	err := r.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", VpsProvisioning, cutoff).
		Find(&vpses).Error
	return vpses, err
}

func (r *VpsRepo) ListForAdmin(ctx context.Context) ([]Vps, error) {
	var vpses []Vps
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&vpses).Error
	return vpses, err
}
