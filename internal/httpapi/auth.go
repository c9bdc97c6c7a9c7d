// Package httpapi is the control plane's own HTTP surface: agent CRUD,
// vps lifecycle, channels, config/workspace pushes, usage, plans and the
// admin routes, plus the mount point for the gateway reverse proxy.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentplane/internal/apperr"
	"agentplane/internal/authn"
	"agentplane/internal/store"
)

type ctxKey int

const userCtxKey ctxKey = iota

// userFromContext returns the authenticated User placed there by
// requireAuth. Never nil for a handler reached through that middleware.
func userFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(userCtxKey).(*store.User)
	return u
}

// requireAuth verifies the bearer JWT, loads the user it names, and
// rejects suspended accounts before the handler ever runs.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apperr.WriteError(w, apperr.Unauthorized())
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		userID, err := authn.VerifyToken(s.jwtSecret, token, time.Now())
		if err != nil {
			apperr.WriteError(w, apperr.Unauthorized())
			return
		}
		user, err := s.users.Get(r.Context(), userID)
		if err != nil {
			apperr.WriteError(w, apperr.Unauthorized())
			return
		}
		if user.Status == store.StatusSuspended {
			apperr.WriteError(w, apperr.Forbidden("account suspended"))
			return
		}
		ctx := context.WithValue(r.Context(), userCtxKey, user)
		next(w, r.WithContext(ctx))
	}
}

// requireAdmin wraps requireAuth and additionally rejects non-admins.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if userFromContext(r.Context()).Role != store.RoleAdmin {
			apperr.WriteError(w, apperr.Forbidden("admin only"))
			return
		}
		next(w, r)
	})
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	return id, err == nil
}

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
