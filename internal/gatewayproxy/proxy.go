// Package gatewayproxy implements the reverse proxy from the frontend
// into an agent's in-VPS gateway: HTTP relay plus a WebSocket relay with
// handshake-token substitution, nonce signing, and JSON-RPC method
// blocklisting.
package gatewayproxy

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"agentplane/internal/apperr"
	"agentplane/internal/store"
)

// usageRecorder is the slice of the usage ledger the relay needs: both
// directions' byte totals are flushed through it at stream end.
type usageRecorder interface {
	AddBandwidth(ctx context.Context, vpsID uuid.UUID, delta int64) error
}

// Server serves every request under /agents/{id}/gateway/.
type Server struct {
	agents      *store.AgentRepo
	vpses       *store.VpsRepo
	ledger      usageRecorder
	jwtSecret   string
	gatewayPort int
}

func NewServer(agents *store.AgentRepo, vpses *store.VpsRepo, l usageRecorder, jwtSecret string, gatewayPort int) *Server {
	return &Server{agents: agents, vpses: vpses, ledger: l, jwtSecret: jwtSecret, gatewayPort: gatewayPort}
}

// ServeHTTP is mounted at the "/agents/{id}/gateway/{rest...}" pattern;
// it resolves and authorizes the caller, then dispatches to either the
// WebSocket relay (rest == "ws") or the plain HTTP relay.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		apperr.WriteError(w, apperr.NotFound())
		return
	}

	res, appErr := s.resolve(r.Context(), r, agentID)
	if appErr != nil {
		apperr.WriteError(w, appErr)
		return
	}

	rest := r.PathValue("rest")
	if rest == "ws" {
		s.handleWS(w, r, res)
		return
	}
	s.handleHTTP(w, r, res, rest)
}
