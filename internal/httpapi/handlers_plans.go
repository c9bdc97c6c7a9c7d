package httpapi

import (
	"net/http"

	"agentplane/internal/apperr"
)

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		apperr.WriteError(w, apperr.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, plans)
}
