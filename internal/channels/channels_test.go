package channels

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"agentplane/internal/apperr"
	"agentplane/internal/store"
)

func TestAddRejectsUnknownKind(t *testing.T) {
	s := NewService(&store.ChannelRepo{})
	_, err := s.Add(context.Background(), uuid.Nil, "carrier-pigeon", nil)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindBadRequest {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}
