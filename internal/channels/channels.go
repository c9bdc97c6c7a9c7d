// Package channels manages the messaging-channel bindings (Telegram,
// Discord, ...) configured on an agent: a thin service layer over
// store.ChannelRepo enforcing the one-binding-per-kind and allowed-kind
// invariants.
package channels

import (
	"context"

	"github.com/google/uuid"

	"agentplane/internal/apperr"
	"agentplane/internal/store"
)

type Service struct {
	repo *store.ChannelRepo
}

func NewService(repo *store.ChannelRepo) *Service {
	return &Service{repo: repo}
}

// Add validates the channel kind, rejects a duplicate binding for the
// same agent+kind, and creates the row. credentials is stored as-is and
// never echoed back in any response DTO.
func (s *Service) Add(ctx context.Context, agentID uuid.UUID, kind string, credentials map[string]interface{}) (*store.AgentChannel, error) {
	if !store.ValidChannelKinds[kind] {
		return nil, apperr.BadRequest("unsupported channel kind: " + kind)
	}

	exists, err := s.repo.ExistsForKind(ctx, agentID, kind)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if exists {
		return nil, apperr.Conflict("a " + kind + " channel is already configured for this agent")
	}

	channel := &store.AgentChannel{
		AgentID:     agentID,
		ChannelKind: kind,
		Credentials: store.JSONMap(credentials),
		Enabled:     true,
	}
	if err := s.repo.Create(ctx, channel); err != nil {
		return nil, apperr.Database(err)
	}
	return channel, nil
}

func (s *Service) List(ctx context.Context, agentID uuid.UUID) ([]store.AgentChannel, error) {
	channels, err := s.repo.ListForAgent(ctx, agentID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return channels, nil
}

func (s *Service) Remove(ctx context.Context, agentID uuid.UUID, kind string) error {
	if err := s.repo.DeleteForKind(ctx, agentID, kind); err != nil {
		return apperr.Database(err)
	}
	return nil
}

// RemoveAll deletes every channel binding for an agent, used when the
// agent itself is deleted.
func (s *Service) RemoveAll(ctx context.Context, agentID uuid.UUID) error {
	if err := s.repo.DeleteForAgent(ctx, agentID); err != nil {
		return apperr.Database(err)
	}
	return nil
}
