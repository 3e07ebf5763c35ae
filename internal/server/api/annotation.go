package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AnnotationHandler serves the live card and the clear and enable controls.
type AnnotationHandler struct {
	pipeline Pipeline
	clear    Clearer
}

// NewAnnotationHandler creates a handler. clear may be nil, which disables
// the clear endpoint.
func NewAnnotationHandler(p Pipeline, clear Clearer) *AnnotationHandler {
	return &AnnotationHandler{pipeline: p, clear: clear}
}

// Routes mounts the handler's endpoints on r.
func (h *AnnotationHandler) Routes(r chi.Router) {
	r.Get("/annotation", h.current)
	if h.clear != nil {
		r.Post("/annotation/clear", h.clearCard)
	}
	r.Get("/enabled", h.enabled)
	r.Put("/enabled", h.setEnabled)
}

type clearResponse struct {
	ClearSignal int `json:"clear_signal"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type enabledResponse struct {
	Enabled bool `json:"enabled"`
}

// current handles GET /api/annotation.
func (h *AnnotationHandler) current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Snapshot())
}

// clearCard handles POST /api/annotation/clear. The card is removed by the
// coordinator once it observes the new signal.
func (h *AnnotationHandler) clearCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, clearResponse{ClearSignal: h.clear.Increment()})
}

func (h *AnnotationHandler) enabled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, enabledResponse{Enabled: h.pipeline.Snapshot().Enabled})
}

// setEnabled handles PUT /api/enabled.
func (h *AnnotationHandler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	h.pipeline.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, enabledResponse{Enabled: *req.Enabled})
}
