package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentRepo provides query access to agents.
type AgentRepo struct {
	db *gorm.DB
}

func NewAgentRepo(db *gorm.DB) *AgentRepo { return &AgentRepo{db: db} }

func (r *AgentRepo) Create(ctx context.Context, a *Agent) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AgentRepo) Get(ctx context.Context, id uuid.UUID) (*Agent, error) {
	var a Agent
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOwned looks up an agent by id, returning gorm.ErrRecordNotFound if
// it exists but belongs to a different user — a 404, never a 403, for
// cross-tenant lookups, so one tenant can't probe for another's agent
// ids.
func (r *AgentRepo) GetOwned(ctx context.Context, id, userID uuid.UUID) (*Agent, error) {
	var a Agent
	if err := r.db.WithContext(ctx).First(&a, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByVps finds the agent currently attached to vpsID, if any. Used by
// the stuck-provisioning cleanup sweep to unlink a destroyed VPS from its
// agent without the caller already knowing the agent id.
func (r *AgentRepo) GetByVps(ctx context.Context, vpsID uuid.UUID) (*Agent, error) {
	var a Agent
	if err := r.db.WithContext(ctx).First(&a, "vps_id = ?", vpsID).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgentRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]Agent, error) {
	var agents []Agent
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&agents).Error
	return agents, err
}

func (r *AgentRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Agent{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *AgentRepo) SetVps(ctx context.Context, agentID uuid.UUID, vpsID *uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&Agent{}).Where("id = ?", agentID).Update("vps_id", vpsID).Error
}

func (r *AgentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&Agent{}, "id = ?", id).Error
}

// GatewayTokenValid is used by the forward proxy
// to authenticate an agent by (id, token) without a full ownership check.
func (r *AgentRepo) GatewayTokenValid(ctx context.Context, agentID uuid.UUID, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Agent{}).
		Where("id = ? AND gateway_token = ?", agentID, token).
		Count(&count).Error
	return count > 0, err
}
