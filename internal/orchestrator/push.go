package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"agentplane/internal/apperr"
	"agentplane/internal/provider"
	"agentplane/internal/store"
)

// UpdateConfig rebuilds the agent's config file (agentConfigPath) from cfg
// and pushes it onto the VPS. Providers with a PushFile path (sprite)
// restart the agent service afterwards; the gateway tools.invoke path
// used for VM providers only writes the file.
func (s *Service) UpdateConfig(ctx context.Context, userID, agentID uuid.UUID, cfg AgentConfig) error {
	rendered, err := cfg.Render()
	if err != nil {
		return apperr.Internal("failed to render agent config")
	}
	return s.pushToAgent(ctx, userID, agentID, agentConfigPath, rendered)
}

// WriteWorkspaceFile overwrites one of the operator-editable workspace
// files and pushes it onto the VPS. filename must be one of
// AllowedWorkspaceFiles.
func (s *Service) WriteWorkspaceFile(ctx context.Context, userID, agentID uuid.UUID, filename, content string) error {
	if !AllowedWorkspaceFiles[filename] {
		return apperr.BadRequest(fmt.Sprintf("%q is not an editable workspace file", filename))
	}
	return s.pushToAgent(ctx, userID, agentID, WorkspacePath(filename), content)
}

// pushToAgent resolves the agent's running VPS and writes content to
// guestPath through whichever path that provider supports: a direct
// docker-exec write for sprite-style providers, or an authenticated
// tools.invoke HTTP call for everything else.
func (s *Service) pushToAgent(ctx context.Context, userID, agentID uuid.UUID, guestPath, content string) error {
	agent, err := s.agents.GetOwned(ctx, agentID, userID)
	if err != nil {
		return apperr.Database(err)
	}
	if agent.VpsID == nil {
		return apperr.NotFound()
	}
	vps, err := s.vpses.Get(ctx, *agent.VpsID)
	if err != nil {
		return apperr.Database(err)
	}
	if vps.State != store.VpsRunning {
		return apperr.Conflict("vps is not running")
	}
	providerName, ok := provider.ParseName(vps.Provider)
	if !ok {
		return apperr.Internal(fmt.Sprintf("unknown provider %q on existing vps", vps.Provider))
	}
	backend, ok := s.providers.Get(providerName)
	if !ok {
		return apperr.Infra(fmt.Errorf("provider %q is not available on this deployment", providerName))
	}
	if vps.ProviderVMID == nil {
		return apperr.Conflict("vps has no provider id yet")
	}

	if pusher, ok := backend.(provider.Pusher); ok {
		if err := pusher.PushFile(ctx, provider.Id(*vps.ProviderVMID), guestPath, content); err != nil {
			return apperr.Infra(err)
		}
		return nil
	}
	return s.pushViaGateway(ctx, vps, agent, guestPath, content)
}

// pushViaGateway writes a file onto a VM-backed VPS by calling its own
// in-guest gateway tools.invoke endpoint, the only management surface a
// VM provider exposes once the VM is up.
func (s *Service) pushViaGateway(ctx context.Context, vps *store.Vps, agent *store.Agent, guestPath, content string) error {
	if vps.Address == nil {
		return apperr.Conflict("vps has no address yet")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"tool": "write",
		"params": map[string]string{
			"path":    guestPath,
			"content": content,
		},
	})
	if err != nil {
		return apperr.Internal("failed to encode tools.invoke request")
	}

	url := fmt.Sprintf("http://%s:%d/tools/invoke", *vps.Address, s.gatewayPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return apperr.Internal("failed to build tools.invoke request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+agent.GatewayToken)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return apperr.Infra(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperr.Infra(fmt.Errorf("gateway tools.invoke returned status %d", resp.StatusCode))
	}
	return nil
}
