package apperr

import (
	"encoding/json"
	"net/http"

	"agentplane/internal/logger"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("apperr: failed to encode response: %v", err)
	}
}

// WriteError renders err as the standard {"error": "<message>"} body used
// throughout the HTTP API, at the status code its kind maps to.
func WriteError(w http.ResponseWriter, err error) {
	e := Wrap(err)
	WriteJSON(w, e.Status(), map[string]string{"error": e.Msg})
}
