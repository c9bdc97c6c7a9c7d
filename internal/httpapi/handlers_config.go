package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"agentplane/internal/apperr"
	"agentplane/internal/orchestrator"
	"agentplane/internal/store"
)

type updateConfigRequest struct {
	Model     *string  `json:"model"`
	ToolsDeny []string `json:"tools_deny"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	var req updateConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequest("invalid request body"))
		return
	}
	cfg := orchestrator.AgentConfig{Model: req.Model, ToolsDeny: req.ToolsDeny}
	if err := s.orchestrator.UpdateConfig(r.Context(), user.ID, agentID, cfg); err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type writeWorkspaceFileRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleWriteWorkspaceFile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	filename := r.PathValue("filename")
	var req writeWorkspaceFileRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequest("invalid request body"))
		return
	}
	if err := s.orchestrator.WriteWorkspaceFile(r.Context(), user.ID, agentID, filename, req.Content); err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type agentHealthResponse struct {
	State     store.VpsState `json:"state"`
	Reachable bool           `json:"reachable"`
}

// handleAgentHealth reports whether the agent's in-VPS gateway answers an
// authenticated request, separate from the control-plane-side VPS state
// tracked in the store.
func (s *Server) handleAgentHealth(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	agent, err := s.agents.GetOwned(r.Context(), agentID, user.ID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	if agent.VpsID == nil {
		writeJSON(w, http.StatusOK, agentHealthResponse{State: store.VpsDestroyed, Reachable: false})
		return
	}
	vps, err := s.vpses.Get(r.Context(), *agent.VpsID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	resp := agentHealthResponse{State: vps.State}
	if vps.State == store.VpsRunning && vps.Address != nil {
		resp.Reachable = s.probeGateway(r.Context(), *vps.Address, agent.GatewayToken)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) probeGateway(ctx context.Context, address, gatewayToken string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, fmt.Sprintf("http://%s:18789/health", address), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+gatewayToken)
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 300
}
