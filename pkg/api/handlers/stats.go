package handlers

import (
	"net/http"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/ingest"
)

// StatsHandler handles pipeline and database statistics endpoints.
type StatsHandler struct {
	store store.Store
	stats *ingest.Stats
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store store.Store, stats *ingest.Stats) *StatsHandler {
	return &StatsHandler{store: store, stats: stats}
}

// Snapshot handles GET /api/stats - live pipeline counters.
func (h *StatsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	WriteJSONOK(w, h.stats.Snapshot())
}

// Reset handles POST /api/stats/reset - zero the pipeline counters.
//
// Useful to watch a fresh batch after changing a device's log format.
func (h *StatsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.stats.Reset()
	WriteJSONOK(w, map[string]string{"status": "ok"})
}

// DatabaseStatsResponse is the body of GET /api/stats/db.
type DatabaseStatsResponse struct {
	*store.DatabaseStats
	LastCleanup *models.CleanupSummary `json:"last_cleanup"`
}

// Database handles GET /api/stats/db - storage-level statistics.
func (h *StatsHandler) Database(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DatabaseStats(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to collect database stats")
		return
	}

	lastCleanup, err := h.store.GetCleanupSummary(r.Context())
	if err != nil {
		InternalServerError(w, "Failed to read last cleanup summary")
		return
	}

	WriteJSONOK(w, DatabaseStatsResponse{
		DatabaseStats: stats,
		LastCleanup:   lastCleanup,
	})
}
