package orchestrator

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"agentplane/internal/logger"
	"agentplane/internal/provider"
	"agentplane/internal/store"
)

// stuckProvisioningMinAge is the minimum time a VPS must have sat in
// Provisioning before the admin sweep will touch it, so a slow-but-healthy
// Create call isn't mistaken for an abandoned one.
const stuckProvisioningMinAge = 15 * time.Minute

// CleanupStuck destroys every VPS that has been stuck in Provisioning for
// at least minAge: best-effort destroy at the provider, transition to
// Destroyed, unlink from its agent if one is attached. A provider destroy
// failure does not stop the row from being marked Destroyed, since a
// provisioning VM that never finished creating may not exist at the
// provider at all.
func (s *Service) CleanupStuck(ctx context.Context, minAge time.Duration) (int, error) {
	if minAge <= 0 {
		minAge = stuckProvisioningMinAge
	}
	stuck, err := s.vpses.ListStuckProvisioning(ctx, minAge)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, vps := range stuck {
		s.cleanupOne(ctx, vps)
		cleaned++
	}
	return cleaned, nil
}

func (s *Service) cleanupOne(ctx context.Context, vps store.Vps) {
	if vps.ProviderVMID != nil {
		if providerName, ok := provider.ParseName(vps.Provider); ok {
			if backend, ok := s.providers.Get(providerName); ok {
				if err := backend.Destroy(ctx, provider.Id(*vps.ProviderVMID)); err != nil {
					logger.Warn("[Orchestrator] cleanup: destroy vps %s at provider: %v", vps.ID, err)
				}
			}
		}
	}

	if err := s.vpses.SetState(ctx, vps.ID, store.VpsDestroyed); err != nil {
		logger.Error("[Orchestrator] cleanup: mark vps %s destroyed: %v", vps.ID, err)
		return
	}

	agent, err := s.agents.GetByVps(ctx, vps.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("[Orchestrator] cleanup: lookup agent for vps %s: %v", vps.ID, err)
		}
		return
	}
	if err := s.agents.SetVps(ctx, agent.ID, nil); err != nil {
		logger.Error("[Orchestrator] cleanup: unlink agent %s from vps %s: %v", agent.ID, vps.ID, err)
	}
}
