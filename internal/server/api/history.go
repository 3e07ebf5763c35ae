package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/handcard/internal/store"
)

// MaxHistoryLimit caps the limit query parameter.
const MaxHistoryLimit = 500

// HistoryReader is the read side of the annotation history.
type HistoryReader interface {
	GetByID(id string) (*store.Record, error)
	List(limit int) ([]*store.Record, error)
}

// HistoryHandler serves past annotations.
type HistoryHandler struct {
	history HistoryReader
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(h HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: h}
}

// Routes mounts the handler's endpoints on r.
func (h *HistoryHandler) Routes(r chi.Router) {
	r.Get("/annotations", h.list)
	r.Get("/annotations/{id}", h.get)
}

type listRecordsResponse struct {
	Annotations []*store.Record `json:"annotations"`
}

// list handles GET /api/annotations?limit=N, newest first.
func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	records, err := h.history.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list annotations")
		return
	}

	if records == nil {
		records = []*store.Record{}
	}
	writeJSON(w, http.StatusOK, listRecordsResponse{Annotations: records})
}

// get handles GET /api/annotations/{id}.
func (h *HistoryHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.history.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Annotation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get annotation")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
