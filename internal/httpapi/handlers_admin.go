package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"agentplane/internal/apperr"
	"agentplane/internal/store"
)

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type adminUpdateUserRequest struct {
	Status *store.UserStatus `json:"status"`
	Role   *store.UserRole   `json:"role"`
	PlanID *string           `json:"plan_id"`
}

// handleAdminUpdateUser applies whichever of status/role/plan_id fields
// were sent, independently — an operator can activate a user and assign a
// plan in one call or across several.
func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	var req adminUpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequest("invalid request body"))
		return
	}
	if req.Status != nil {
		if *req.Status == store.StatusActive {
			if err := s.assignDemoPlanIfUnset(r.Context(), id); err != nil {
				apperr.WriteError(w, apperr.Database(err))
				return
			}
		}
		if err := s.users.SetStatus(r.Context(), id, *req.Status); err != nil {
			apperr.WriteError(w, apperr.Database(err))
			return
		}
	}
	if req.Role != nil {
		if err := s.users.SetRole(r.Context(), id, *req.Role); err != nil {
			apperr.WriteError(w, apperr.Database(err))
			return
		}
	}
	if req.PlanID != nil {
		planID, err := parseUUID(*req.PlanID)
		if err != nil {
			apperr.WriteError(w, apperr.BadRequest("invalid plan_id"))
			return
		}
		if err := s.users.SetPlan(r.Context(), id, planID); err != nil {
			apperr.WriteError(w, apperr.Database(err))
			return
		}
	}
	user, err := s.users.Get(r.Context(), id)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// assignDemoPlanIfUnset auto-enrolls a user with no plan in the plan
// named "demo" when they're activated, so they aren't immediately gated
// by admission control for having no plan at all. A missing demo plan is
// a no-op, not an error — not every deployment seeds one.
func (s *Server) assignDemoPlanIfUnset(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.PlanID != nil {
		return nil
	}
	demo, err := s.plans.GetByName(ctx, "demo")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.users.SetPlan(ctx, userID, demo.ID)
}

func (s *Server) handleAdminListVpses(w http.ResponseWriter, r *http.Request) {
	vpses, err := s.vpses.ListForAdmin(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, vpses)
}

func (s *Server) handleAdminListAgents(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	var all []store.Agent
	for _, u := range users {
		agents, err := s.agents.ListForUser(r.Context(), u.ID)
		if err != nil {
			apperr.WriteError(w, apperr.Database(err))
			return
		}
		all = append(all, agents...)
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleAdminListVpsConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.vpsConfigs.List(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

type adminCleanupResponse struct {
	Cleaned int `json:"cleaned"`
}

// handleAdminCleanup sweeps VPSes stuck in Provisioning past the 15-minute
// threshold and destroys them.
func (s *Server) handleAdminCleanup(w http.ResponseWriter, r *http.Request) {
	cleaned, err := s.orchestrator.CleanupStuck(r.Context(), 15*time.Minute)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, adminCleanupResponse{Cleaned: cleaned})
}
