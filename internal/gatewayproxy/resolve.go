package gatewayproxy

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentplane/internal/apperr"
	"agentplane/internal/authn"
	"agentplane/internal/store"
)

// resolved is everything the gateway proxy needs once an incoming request
// has been authenticated and scoped to a live, reachable VPS.
type resolved struct {
	Agent *store.Agent
	Vps   *store.Vps
}

// bearerToken extracts the caller's JWT from either the Authorization
// header or, for the WebSocket upgrade path where custom headers aren't
// always reachable from browser code, a ?token= query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if r.PathValue("rest") != "ws" {
		return ""
	}
	return r.URL.Query().Get("token")
}

// resolve authenticates the caller and verifies they own agentID's VPS
// and that it is reachable. Every failure mode collapses to NotFound —
// missing token, invalid token, wrong owner, no VPS attached, VPS not
// running — so a caller can never distinguish "doesn't exist" from
// "exists but isn't yours" or "exists but is stopped".
func (s *Server) resolve(ctx context.Context, r *http.Request, agentID uuid.UUID) (*resolved, *apperr.Error) {
	token := bearerToken(r)
	if token == "" {
		return nil, apperr.NotFound()
	}
	userID, err := authn.VerifyToken(s.jwtSecret, token, time.Now())
	if err != nil {
		return nil, apperr.NotFound()
	}

	agent, err := s.agents.GetOwned(ctx, agentID, userID)
	if err != nil {
		return nil, apperr.NotFound()
	}
	if agent.VpsID == nil {
		return nil, apperr.NotFound()
	}
	vps, err := s.vpses.Get(ctx, *agent.VpsID)
	if err != nil {
		return nil, apperr.NotFound()
	}
	if vps.State != store.VpsRunning || vps.Address == nil {
		return nil, apperr.NotFound()
	}
	return &resolved{Agent: agent, Vps: vps}, nil
}
