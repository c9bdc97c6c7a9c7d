package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ValidChannelKinds lists the messaging channels an agent may be wired to.
// Delivery for a real provider is out of scope; this governs configuration
// CRUD only.
var ValidChannelKinds = map[string]bool{
	"telegram": true,
	"whatsapp": true,
	"discord":  true,
	"slack":    true,
	"signal":   true,
}

// ChannelRepo provides query access to an agent's channel bindings.
type ChannelRepo struct {
	db *gorm.DB
}

func NewChannelRepo(db *gorm.DB) *ChannelRepo { return &ChannelRepo{db: db} }

func (r *ChannelRepo) Create(ctx context.Context, c *AgentChannel) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ChannelRepo) ListForAgent(ctx context.Context, agentID uuid.UUID) ([]AgentChannel, error) {
	var channels []AgentChannel
	err := r.db.WithContext(ctx).Where("agent_id = ?", agentID).Order("created_at").Find(&channels).Error
	return channels, err
}

// ExistsForKind reports whether an agent already has a channel of this
// kind configured — at most one binding per kind per agent.
func (r *ChannelRepo) ExistsForKind(ctx context.Context, agentID uuid.UUID, kind string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&AgentChannel{}).
		Where("agent_id = ? AND channel_kind = ?", agentID, kind).
		Count(&count).Error
	return count > 0, err
}

func (r *ChannelRepo) DeleteForKind(ctx context.Context, agentID uuid.UUID, kind string) error {
	return r.db.WithContext(ctx).Delete(&AgentChannel{}, "agent_id = ? AND channel_kind = ?", agentID, kind).Error
}

func (r *ChannelRepo) DeleteForAgent(ctx context.Context, agentID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&AgentChannel{}, "agent_id = ?", agentID).Error
}
