// Package api provides the JSON handlers for the annotation and history endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/handcard/internal/app"
)

// Pipeline is the coordinator surface the handlers read and toggle.
type Pipeline interface {
	Snapshot() app.Snapshot
	Stats() app.Stats
	SetEnabled(enabled bool)
}

// Clearer issues clear requests; each call returns the new signal value.
type Clearer interface {
	Increment() int
	Value() int
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
