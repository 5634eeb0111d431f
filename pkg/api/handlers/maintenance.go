package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/maintenance"
)

// MaintenanceHandler handles retention cleanup and maintenance job status.
type MaintenanceHandler struct {
	store   store.Store
	cleaner *maintenance.Cleaner
}

// NewMaintenanceHandler creates a new maintenance handler. cleaner may be
// nil when the cleanup route is not mounted.
func NewMaintenanceHandler(store store.Store, cleaner *maintenance.Cleaner) *MaintenanceHandler {
	return &MaintenanceHandler{store: store, cleaner: cleaner}
}

// Cleanup handles POST /api/maintenance/cleanup - run a retention pass now.
//
// Returns the cleanup summary when a pass ran, or the skip reason when
// retention is disabled or an import holds the database.
func (h *MaintenanceHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.cleaner.RunCleanup(r.Context())
	if err != nil {
		InternalServerError(w, "Cleanup failed")
		return
	}

	if result.Summary != nil {
		WriteJSONOK(w, result.Summary)
		return
	}
	WriteJSONOK(w, result)
}

// MaintenanceJobResponse is the body of GET /api/maintenance/jobs/{id}.
type MaintenanceJobResponse struct {
	JobID        string           `json:"job_id"`
	Type         string           `json:"type"`
	Status       string           `json:"status"`
	DeviceKey    string           `json:"device_key"`
	ResultCounts map[string]int64 `json:"result_counts"`
	ErrorMessage string           `json:"error_message"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at"`
	FinishedAt   *time.Time       `json:"finished_at"`
}

// GetJob handles GET /api/maintenance/jobs/{id} - status and result counts
// for a purge or cleanup job.
func (h *MaintenanceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.store.GetMaintenanceJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			NotFound(w, "Job not found")
			return
		}
		InternalServerError(w, "Failed to get job")
		return
	}

	counts := job.GetResultCounts()
	if counts == nil {
		counts = map[string]int64{}
	}

	WriteJSONOK(w, MaintenanceJobResponse{
		JobID:        job.ID,
		Type:         job.Type,
		Status:       job.Status,
		DeviceKey:    job.DeviceKey,
		ResultCounts: counts,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
	})
}
