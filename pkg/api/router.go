package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/api/handlers"
	"github.com/kvasirlab/connwatch/pkg/classify"
	"github.com/kvasirlab/connwatch/pkg/ingest"
	"github.com/kvasirlab/connwatch/pkg/maintenance"
)

// requestTimeout bounds the quick endpoints. The streaming ingest endpoints
// are exempt; they hold the connection for as long as the file takes.
const requestTimeout = 30 * time.Second

// Dependencies carries the shared components the API serves. Store is
// required; the rest may be nil, in which case the routes that need them are
// not mounted.
type Dependencies struct {
	// Store is the analytics store behind every persistent endpoint.
	Store store.Store

	// Stats is the live pipeline counter set shared with the UDP listener.
	Stats *ingest.Stats

	// Ingestor is the live pipeline for the synchronous file-ingest endpoint.
	Ingestor *ingest.Ingestor

	// Cleaner runs manual retention cleanups.
	Cleaner *maintenance.Cleaner

	// Purger runs firewall purges as background maintenance jobs.
	Purger *maintenance.Purger

	// Classifier is invalidated whenever classification rules change.
	Classifier *classify.Classifier

	// SpoolDir is where upload spool files are written, one per job.
	SpoolDir string
}

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout on all quick endpoints
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	healthHandler := handlers.NewHealthHandler(deps.Store)
	r.Get("/health", healthHandler.Liveness)

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	statsHandler := handlers.NewStatsHandler(deps.Store, deps.Stats)
	ingestHandler := handlers.NewIngestHandler(deps.Store, deps.Stats, deps.Ingestor, deps.SpoolDir)
	firewallHandler := handlers.NewFirewallHandler(deps.Store, deps.Purger)
	deviceHandler := handlers.NewDeviceHandler(deps.Store)
	classifyHandler := handlers.NewClassifyHandler(deps.Store, deps.Classifier)
	settingsHandler := handlers.NewSettingsHandler(deps.Store)
	maintenanceHandler := handlers.NewMaintenanceHandler(deps.Store, deps.Cleaner)

	r.Route("/api", func(r chi.Router) {
		// Quick endpoints: bounded request time.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/stats", statsHandler.Snapshot)
			r.Post("/stats/reset", statsHandler.Reset)
			r.Get("/stats/db", statsHandler.Database)

			r.Get("/ingest/upload/{id}/status", ingestHandler.UploadStatus)
			r.Post("/ingest/upload/{id}/cancel", ingestHandler.CancelUpload)
			r.Delete("/ingest/jobs/{id}", ingestHandler.DeleteJob)

			r.Route("/firewalls", func(r chi.Router) {
				r.Get("/", firewallHandler.List)
				r.Get("/{key}/override", firewallHandler.GetOverride)
				r.Put("/{key}/override", firewallHandler.SetOverride)
				r.Get("/{key}/jobs", firewallHandler.ListJobs)
				if deps.Purger != nil {
					r.Post("/{key}/purge", firewallHandler.Purge)
				}
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", deviceHandler.List)
				r.Get("/ha-candidates", deviceHandler.HACandidates)
				r.Get("/groups", deviceHandler.ListGroups)
				r.Post("/groups/enable", deviceHandler.EnableGroup)
				r.Post("/groups/rename", deviceHandler.RenameGroup)
			})

			r.Route("/classify", func(r chi.Router) {
				r.Get("/names", classifyHandler.Names)
				r.Get("/rules", classifyHandler.ListRules)
				r.Put("/rules", classifyHandler.SetRule)
				r.Delete("/rules", classifyHandler.DeleteRule)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.List)
				r.Get("/log-retention", settingsHandler.GetLogRetention)
				r.Put("/log-retention", settingsHandler.SetLogRetention)
				r.Get("/local-networks", settingsHandler.GetLocalNetworks)
				r.Put("/local-networks", settingsHandler.SetLocalNetworks)
			})

			r.Route("/maintenance", func(r chi.Router) {
				if deps.Cleaner != nil {
					r.Post("/cleanup", maintenanceHandler.Cleanup)
				}
				r.Get("/jobs/{id}", maintenanceHandler.GetJob)
			})
		})

		// Streaming ingest: request bodies arrive at upload speed, so these
		// run without the request timeout.
		r.Group(func(r chi.Router) {
			if deps.Ingestor != nil {
				r.Post("/ingest/file", ingestHandler.IngestFile)
			}
			r.Post("/ingest/upload", ingestHandler.Upload)
		})
	})

	return r
}

// isHealthPath reports whether the request path is the healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger is a custom middleware that logs requests using the internal
// logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests complete at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
