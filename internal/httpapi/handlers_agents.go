package httpapi

import (
	"net/http"

	"agentplane/internal/apperr"
	"agentplane/internal/store"
)

type createAgentRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agents, err := s.agents.ListForUser(r.Context(), user.ID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

// handleCreateAgent enforces the owning user's plan.MaxAgents ceiling
// before creating the row — mirrors the MaxVpses check the orchestrator
// runs at provision time.
func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user.PlanID == nil {
		apperr.WriteError(w, apperr.Forbidden("no plan assigned"))
		return
	}
	plan, err := s.plans.Get(r.Context(), *user.PlanID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	count, err := s.agents.CountForUser(r.Context(), user.ID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	if count >= int64(plan.MaxAgents) {
		apperr.WriteError(w, apperr.LimitExceeded("agent limit reached for your plan"))
		return
	}

	var req createAgentRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		apperr.WriteError(w, apperr.BadRequest("name is required"))
		return
	}

	agent := &store.Agent{UserID: user.ID, Name: req.Name}
	if err := s.agents.Create(r.Context(), agent); err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	agent, err := s.agents.GetOwned(r.Context(), id, user.ID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// handleDeleteAgent cascades: an attached VPS is destroyed first, then the
// agent row (and its channels) are removed.
func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	agent, err := s.agents.GetOwned(r.Context(), id, user.ID)
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	if agent.VpsID != nil {
		// An already-destroyed VPS surfaces as Conflict from the
		// orchestrator; for a cascade delete that's success, not an error.
		if err := s.orchestrator.Destroy(r.Context(), user.ID, agent.ID); err != nil {
			if appErr, ok := apperr.As(err); !ok || appErr.Kind != apperr.KindConflict {
				apperr.WriteError(w, err)
				return
			}
		}
	}
	if err := s.channels.RemoveAll(r.Context(), agent.ID); err != nil {
		apperr.WriteError(w, err)
		return
	}
	if err := s.agents.Delete(r.Context(), agent.ID); err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
