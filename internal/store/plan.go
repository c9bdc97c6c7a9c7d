package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanRepo provides query access to plans and their VPS-config menus.
type PlanRepo struct {
	db *gorm.DB
}

func NewPlanRepo(db *gorm.DB) *PlanRepo { return &PlanRepo{db: db} }

func (r *PlanRepo) List(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	err := r.db.WithContext(ctx).Order("name").Find(&plans).Error
	return plans, err
}

func (r *PlanRepo) Get(ctx context.Context, id uuid.UUID) (*Plan, error) {
	var plan Plan
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByName is used by the admin status handler, which auto-assigns a
// user activated with no plan_id to the plan named "demo".
func (r *PlanRepo) GetByName(ctx context.Context, name string) (*Plan, error) {
	var plan Plan
	if err := r.db.WithContext(ctx).First(&plan, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// VpsConfigsFor returns the provisioning templates a plan's tenants may
// choose from.
func (r *PlanRepo) VpsConfigsFor(ctx context.Context, planID uuid.UUID) ([]VpsConfig, error) {
	var plan Plan
	if err := r.db.WithContext(ctx).Preload("VpsConfigs").First(&plan, "id = ?", planID).Error; err != nil {
		return nil, err
	}
	return plan.VpsConfigs, nil
}

// AllowsVpsConfig reports whether vpsConfigID is on planID's menu of
// provisioning templates.
func (r *PlanRepo) AllowsVpsConfig(ctx context.Context, planID, vpsConfigID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("plan_vps_configs").
		Where("plan_id = ? AND vps_config_id = ?", planID, vpsConfigID).
		Count(&count).Error
	return count > 0, err
}
