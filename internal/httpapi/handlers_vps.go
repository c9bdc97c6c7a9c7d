package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"agentplane/internal/apperr"
)

type provisionVpsRequest struct {
	VpsConfigID uuid.UUID `json:"vps_config_id"`
}

func (s *Server) handleProvisionVps(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	var req provisionVpsRequest
	if err := decodeJSON(r, &req); err != nil || req.VpsConfigID == uuid.Nil {
		apperr.WriteError(w, apperr.BadRequest("vps_config_id is required"))
		return
	}
	vps, err := s.orchestrator.Provision(r.Context(), user.ID, agentID, req.VpsConfigID)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vps)
}

func (s *Server) handleDestroyVps(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	if err := s.orchestrator.Destroy(r.Context(), user.ID, agentID); err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartVps(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	if err := s.orchestrator.Start(r.Context(), user.ID, agentID); err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopVps(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	if err := s.orchestrator.Stop(r.Context(), user.ID, agentID); err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRestartAgent is the provider-specific restart: stop followed by
// start, which for every current backend is what "restart" means — sprite
// containers get a fresh process via Stop+Start same as a VM reboot would.
func (s *Server) handleRestartAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	if err := s.orchestrator.Stop(r.Context(), user.ID, agentID); err != nil {
		apperr.WriteError(w, err)
		return
	}
	if err := s.orchestrator.Start(r.Context(), user.ID, agentID); err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
