package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VpsConfigRepo provides query access to provisioning templates.
type VpsConfigRepo struct {
	db *gorm.DB
}

func NewVpsConfigRepo(db *gorm.DB) *VpsConfigRepo { return &VpsConfigRepo{db: db} }

func (r *VpsConfigRepo) List(ctx context.Context) ([]VpsConfig, error) {
	var configs []VpsConfig
	err := r.db.WithContext(ctx).Order("name").Find(&configs).Error
	return configs, err
}

func (r *VpsConfigRepo) Get(ctx context.Context, id uuid.UUID) (*VpsConfig, error) {
	var cfg VpsConfig
	if err := r.db.WithContext(ctx).First(&cfg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Upsert is used by the catalog loader to seed/refresh VpsConfig rows from
// the YAML catalog file at startup, keyed by name.
func (r *VpsConfigRepo) Upsert(ctx context.Context, cfg *VpsConfig) error {
	var existing VpsConfig
	err := r.db.WithContext(ctx).First(&existing, "name = ?", cfg.Name).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.WithContext(ctx).Create(cfg).Error
	}
	if err != nil {
		return err
	}
	cfg.ID = existing.ID
	return r.db.WithContext(ctx).Model(&existing).Updates(cfg).Error
}
