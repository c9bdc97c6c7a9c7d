package middleware

import (
	"net/http"
	"strings"
)

// CORS builds a single-origin CORS middleware scoped to the configured
// frontend, the one origin this control plane actually serves.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	allowed := normalize(allowedOrigin)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && normalize(origin) == allowed {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, Origin, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version, Sec-WebSocket-Protocol")
				w.Header().Set("Access-Control-Max-Age", "7200")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// normalize trims a trailing slash so configured and observed origins
// compare equal regardless of how either was written.
func normalize(origin string) string {
	return strings.TrimSuffix(origin, "/")
}
