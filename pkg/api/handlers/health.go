package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/kvasirlab/connwatch/pkg/analytics/store"
)

// HealthHandler handles the health check endpoint.
//
// The endpoint is unauthenticated and reports whether the server process is
// running and whether the analytics database answers a probe query.
type HealthHandler struct {
	store store.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store store.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Liveness handles GET /health - liveness probe.
//
// Returns 200 OK when the server is up and the database responds, 503
// Service Unavailable when the database probe fails.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Healthcheck(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Database: "down",
			Error:    err.Error(),
		})
		return
	}

	WriteJSONOK(w, HealthResponse{
		Status:   "ok",
		Database: "up",
	})
}
