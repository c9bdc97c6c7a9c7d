package forwardproxy

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"agentplane/internal/store"
)

// credentials is the (agent_id, gateway_token) pair decoded from a
// Proxy-Authorization header.
type credentials struct {
	AgentID uuid.UUID
	Token   string
}

// parseProxyAuth decodes "Basic base64(agent_id:gateway_token)". It
// returns ok=false for any malformed header without distinguishing the
// failure reason — the caller always responds 407 either way.
func parseProxyAuth(header string) (credentials, bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return credentials{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return credentials{}, false
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return credentials{}, false
	}
	agentID, err := uuid.Parse(parts[0])
	if err != nil {
		return credentials{}, false
	}
	return credentials{AgentID: agentID, Token: parts[1]}, true
}

// authenticate resolves the agent named by a Proxy-Authorization header,
// returning nil and false if the header is missing/malformed or the
// (agent_id, token) pair doesn't match a row exactly.
func (s *Server) authenticate(ctx context.Context, r *http.Request) (*store.Agent, bool) {
	creds, ok := parseProxyAuth(r.Header.Get("Proxy-Authorization"))
	if !ok {
		return nil, false
	}
	valid, err := s.agents.GatewayTokenValid(ctx, creds.AgentID, creds.Token)
	if err != nil || !valid {
		return nil, false
	}
	agent, err := s.agents.Get(ctx, creds.AgentID)
	if err != nil {
		return nil, false
	}
	return agent, true
}
