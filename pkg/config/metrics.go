package config

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/pkg/metrics"
)

// MetricsServer wraps the Prometheus exposition endpoint HTTP server.
type MetricsServer struct {
	server *http.Server
	port   int
}

// InitializeMetrics initializes the metrics subsystem from configuration.
//
// When metrics are disabled it returns nil and every metrics constructor
// keeps returning nil, so instrumented code runs with zero overhead. When
// enabled it initializes the process registry and returns an unstarted
// /metrics server.
func InitializeMetrics(cfg *Config) *MetricsServer {
	if !cfg.Metrics.Enabled {
		return nil
	}

	metrics.InitRegistry()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		port: cfg.Metrics.Port,
	}
}

// Start serves the /metrics endpoint until the context is cancelled.
func (m *MetricsServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "port", m.port)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Port returns the configured metrics port.
func (m *MetricsServer) Port() int {
	return m.port
}
