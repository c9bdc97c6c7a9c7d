package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"agentplane/internal/apperr"
	"agentplane/internal/logger"
	"agentplane/internal/provider"
	"agentplane/internal/store"
)

// Service drives VPS provisioning and lifecycle transitions on behalf of
// the HTTP API.
type Service struct {
	agents    *store.AgentRepo
	vpses     *store.VpsRepo
	vpsConfig *store.VpsConfigRepo
	plans     *store.PlanRepo
	users     *store.UserRepo
	providers *provider.Registry

	proxyExternalAddr string
	gatewayPort       int
}

func NewService(
	agents *store.AgentRepo,
	vpses *store.VpsRepo,
	vpsConfig *store.VpsConfigRepo,
	plans *store.PlanRepo,
	users *store.UserRepo,
	providers *provider.Registry,
	proxyExternalAddr string,
	gatewayPort int,
) *Service {
	return &Service{
		agents:            agents,
		vpses:             vpses,
		vpsConfig:         vpsConfig,
		plans:             plans,
		users:             users,
		providers:         providers,
		proxyExternalAddr: proxyExternalAddr,
		gatewayPort:       gatewayPort,
	}
}

// Provision creates a VPS for agentID on the backend named by vpsConfigID,
// subject to the owning user's plan.MaxVpses ceiling. The agent must not
// already have a VPS attached.
func (s *Service) Provision(ctx context.Context, userID, agentID, vpsConfigID uuid.UUID) (*store.Vps, error) {
	agent, err := s.agents.GetOwned(ctx, agentID, userID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if agent.VpsID != nil {
		return nil, apperr.Conflict("agent already has a vps")
	}

	cfg, err := s.vpsConfig.Get(ctx, vpsConfigID)
	if err != nil {
		return nil, apperr.Database(err)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if user.PlanID == nil {
		return nil, apperr.Forbidden("no plan assigned")
	}
	plan, err := s.plans.Get(ctx, *user.PlanID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	count, err := s.vpses.CountForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if count >= int64(plan.MaxVpses) {
		return nil, apperr.LimitExceeded(fmt.Sprintf("VPS limit reached (%d/%d)", count, plan.MaxVpses))
	}

	allowed, err := s.plans.AllowsVpsConfig(ctx, *user.PlanID, vpsConfigID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if !allowed {
		return nil, apperr.BadRequest("vps config is not available on your plan")
	}

	providerName, ok := provider.ParseName(cfg.Provider)
	if !ok {
		return nil, apperr.Internal(fmt.Sprintf("unknown provider %q configured for vps config", cfg.Provider))
	}
	backend, ok := s.providers.Get(providerName)
	if !ok {
		return nil, apperr.Infra(fmt.Errorf("provider %q is not available on this deployment", providerName))
	}

	// The insert-then-attach pair is what serializes concurrent
	// provisioners: a second request for the same agent fails the
	// "no vps attached" gate once this attach lands.
	vps := &store.Vps{
		UserID:      userID,
		VpsConfigID: vpsConfigID,
		Name:        fmt.Sprintf("agent-%s", agent.ID),
		Provider:    cfg.Provider,
		State:       store.VpsProvisioning,
	}
	if err := s.vpses.Create(ctx, vps); err != nil {
		return nil, apperr.Database(err)
	}
	if err := s.agents.SetVps(ctx, agentID, &vps.ID); err != nil {
		return nil, apperr.Database(err)
	}

	spec := s.buildSpec(agent, cfg, vps)
	info, err := backend.Create(ctx, spec)
	if err != nil {
		// Leave the row in Provisioning; the admin cleanup-stuck sweep
		// destroys abandoned rows later.
		return nil, apperr.Infra(err)
	}

	var address *string
	if info.Address != "" {
		address = &info.Address
	}
	providerVMID := string(info.ID)
	if err := s.vpses.SetProviderInfo(ctx, vps.ID, &providerVMID, address, store.VpsRunning); err != nil {
		return nil, apperr.Database(err)
	}

	vps.ProviderVMID = &providerVMID
	vps.Address = address
	vps.State = store.VpsRunning
	return vps, nil
}

// buildSpec assembles the provisioning spec, including the proxy
// credentials every agent runtime needs to reach the outside world
// through the forward proxy, and the config/workspace files that must
// exist before the agent process's first start.
func (s *Service) buildSpec(agent *store.Agent, cfg *store.VpsConfig, vps *store.Vps) provider.Spec {
	proxyURL := fmt.Sprintf("https://%s:%s@%s", agent.ID, agent.GatewayToken, s.proxyExternalAddr)

	env := map[string]string{
		"OPENCLAW_GATEWAY_TOKEN": agent.GatewayToken,
		"HTTP_PROXY":             proxyURL,
		"HTTPS_PROXY":            proxyURL,
		"http_proxy":             proxyURL,
		"https_proxy":            proxyURL,
	}

	configJSON, _ := AgentConfig{}.Render()
	files := []provider.FileMount{
		{GuestPath: agentConfigPath, Content: configJSON},
	}
	for name, content := range DefaultWorkspaceFiles() {
		files = append(files, provider.FileMount{GuestPath: WorkspacePath(name), Content: content})
	}

	return provider.Spec{
		Name:          vps.Name,
		Image:         cfg.Image,
		Location:      cfg.Location,
		CPUMillicores: cfg.CPUMillicores,
		MemoryMB:      cfg.MemoryMB,
		DiskGB:        cfg.DiskGB,
		Env:           env,
		Files:         files,
	}
}

func (s *Service) Start(ctx context.Context, userID, agentID uuid.UUID) error {
	vps, backend, err := s.ownedVpsAndBackend(ctx, userID, agentID)
	if err != nil {
		return err
	}
	if vps.State != store.VpsStopped || vps.ProviderVMID == nil {
		return apperr.Conflict("vps is not stopped")
	}
	if err := backend.Start(ctx, provider.Id(*vps.ProviderVMID)); err != nil {
		return apperr.Infra(err)
	}
	return apperr.Database(s.vpses.SetState(ctx, vps.ID, store.VpsRunning))
}

func (s *Service) Stop(ctx context.Context, userID, agentID uuid.UUID) error {
	vps, backend, err := s.ownedVpsAndBackend(ctx, userID, agentID)
	if err != nil {
		return err
	}
	if vps.State != store.VpsRunning || vps.ProviderVMID == nil {
		return apperr.Conflict("vps is not running")
	}
	if err := backend.Stop(ctx, provider.Id(*vps.ProviderVMID)); err != nil {
		return apperr.Infra(err)
	}
	return apperr.Database(s.vpses.SetState(ctx, vps.ID, store.VpsStopped))
}

// Destroy tears the agent's VPS down. The provider call is best-effort —
// a failure is logged, not propagated — because the store is the
// authority on the row's state, and a half-created VM may not even exist
// at the provider.
func (s *Service) Destroy(ctx context.Context, userID, agentID uuid.UUID) error {
	vps, backend, err := s.ownedVpsAndBackend(ctx, userID, agentID)
	if err != nil {
		return err
	}
	if vps.State == store.VpsDestroyed {
		return apperr.Conflict("vps is already destroyed")
	}
	if vps.ProviderVMID != nil {
		if err := backend.Destroy(ctx, provider.Id(*vps.ProviderVMID)); err != nil {
			logger.Warn("[Orchestrator] destroy vps %s at provider: %v", vps.ID, err)
		}
	}
	if err := s.vpses.SetState(ctx, vps.ID, store.VpsDestroyed); err != nil {
		return apperr.Database(err)
	}
	return apperr.Database(s.agents.SetVps(ctx, agentID, nil))
}

func (s *Service) ownedVpsAndBackend(ctx context.Context, userID, agentID uuid.UUID) (*store.Vps, provider.VpsProvider, error) {
	agent, err := s.agents.GetOwned(ctx, agentID, userID)
	if err != nil {
		return nil, nil, apperr.Database(err)
	}
	if agent.VpsID == nil {
		return nil, nil, apperr.NotFound()
	}
	vps, err := s.vpses.Get(ctx, *agent.VpsID)
	if err != nil {
		return nil, nil, apperr.Database(err)
	}
	providerName, ok := provider.ParseName(vps.Provider)
	if !ok {
		return nil, nil, apperr.Internal(fmt.Sprintf("unknown provider %q on existing vps", vps.Provider))
	}
	backend, ok := s.providers.Get(providerName)
	if !ok {
		return nil, nil, apperr.Infra(fmt.Errorf("provider %q is not available on this deployment", providerName))
	}
	return vps, backend, nil
}
