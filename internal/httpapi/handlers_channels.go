package httpapi

import (
	"net/http"

	"agentplane/internal/apperr"
)

type addChannelRequest struct {
	Kind        string                 `json:"kind"`
	Credentials map[string]interface{} `json:"credentials"`
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	if _, err := s.agents.GetOwned(r.Context(), agentID, user.ID); err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	channels, err := s.channels.List(r.Context(), agentID)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *Server) handleAddChannel(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	if _, err := s.agents.GetOwned(r.Context(), agentID, user.ID); err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	var req addChannelRequest
	if err := decodeJSON(r, &req); err != nil {
		apperr.WriteError(w, apperr.BadRequest("invalid request body"))
		return
	}
	channel, err := s.channels.Add(r.Context(), agentID, req.Kind, req.Credentials)
	if err != nil {
		apperr.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, channel)
}

func (s *Server) handleRemoveChannel(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	agentID, ok := pathID(r, "id")
	if !ok {
		apperr.WriteError(w, apperr.NotFound())
		return
	}
	if _, err := s.agents.GetOwned(r.Context(), agentID, user.ID); err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	kind := r.PathValue("kind")
	if err := s.channels.Remove(r.Context(), agentID, kind); err != nil {
		apperr.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
