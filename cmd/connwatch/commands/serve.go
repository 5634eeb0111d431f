package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/internal/telemetry"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/api"
	"github.com/kvasirlab/connwatch/pkg/classify"
	"github.com/kvasirlab/connwatch/pkg/config"
	"github.com/kvasirlab/connwatch/pkg/importer"
	"github.com/kvasirlab/connwatch/pkg/ingest"
	"github.com/kvasirlab/connwatch/pkg/maintenance"
	"github.com/kvasirlab/connwatch/pkg/metrics"

	// Import prometheus metrics to register init() functions
	_ "github.com/kvasirlab/connwatch/pkg/metrics/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ConnWatch server",
	Long: `Start the ConnWatch server with the specified configuration.

The server runs the UDP syslog listener, the import job worker, the retention
cleaner, and the REST API, all against the configured analytics database.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/connwatch/config.yaml.

Examples:
  # Start with default config
  connwatch serve

  # Start with custom config file
  connwatch serve --config /etc/connwatch/config.yaml

  # Start with environment variable overrides
  CONNWATCH_LOGGING_LEVEL=DEBUG connwatch serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "connwatch",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "connwatch",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("ConnWatch starting", "version", Version)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Initialize metrics (if enabled)
	metricsServer := config.InitializeMetrics(cfg)
	if metricsServer != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Open the analytics store (runs schema migration)
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize analytics store: %w", err)
	}
	defer func() { _ = st.Close() }()
	st.SetMetrics(metrics.NewStorageMetrics())
	logger.Info("Analytics store ready", "type", cfg.Database.Type)

	// Jobs left uploading, queued, or running by a previous process cannot
	// make progress; fail them now so the UI does not show ghosts.
	recovered, err := st.RecoverInterruptedIngestJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	if recovered > 0 {
		logger.Info("Interrupted ingest jobs marked failed", "count", recovered)
	}

	classifier := classify.New(st, classify.ZoneFirst)

	stats := ingest.NewStats()
	stats.AttachPipelineMetrics(metrics.NewIngestMetrics())

	ingestor := ingest.New(ingest.Config{
		Store:      st,
		Classifier: classifier,
		Stats:      stats,
		Source:     store.BatchSourceSyslog,
		BatchSize:  cfg.Ingest.BatchSize,
		Metrics:    metrics.NewIngestMetrics(),
	})

	flusher := ingest.NewFlusher(ingestor, cfg.Ingest.FlushInterval)
	if err := flusher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start flusher: %w", err)
	}

	var udp *ingest.UDPListener
	if cfg.Syslog.IsEnabled() {
		udp = ingest.NewUDPListener(ingest.UDPConfig{
			Addr:       cfg.Syslog.Addr(),
			ReadBuffer: int(cfg.Syslog.ReadBuffer.Uint64()),
			Metrics:    metrics.NewSyslogMetrics(),
		}, ingestor)
		if err := udp.Start(ctx); err != nil {
			return fmt.Errorf("failed to start syslog listener: %w", err)
		}
		logger.Info("Syslog listener started", "addr", cfg.Syslog.Addr())
	} else {
		logger.Info("Syslog listener disabled")
	}

	worker := importer.NewWorker(st, classifier, stats, importer.Config{
		SpoolDir:     cfg.Ingest.SpoolDir,
		PollInterval: cfg.Importer.PollInterval,
		StallAfter:   cfg.Importer.StallAfter,
		Metrics:      metrics.NewImporterMetrics(),
	})
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start import worker: %w", err)
	}

	cleaner := maintenance.NewCleaner(st, maintenance.CleanerConfig{
		StartupDelay: cfg.Retention.StartupDelay,
		Interval:     cfg.Retention.Interval,
		Metrics:      metrics.NewRetentionMetrics(),
	})
	if err := cleaner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start retention cleaner: %w", err)
	}

	purger := maintenance.NewPurger(st)

	// Start API server (if enabled)
	serverDone := make(chan error, 1)
	var apiServer *api.Server
	if cfg.API.IsEnabled() {
		apiServer = api.NewServer(cfg.API, api.Dependencies{
			Store:      st,
			Stats:      stats,
			Ingestor:   ingestor,
			Cleaner:    cleaner,
			Purger:     purger,
			Classifier: classifier,
			SpoolDir:   cfg.Ingest.SpoolDir,
		})
		go func() {
			serverDone <- apiServer.Start(ctx)
		}()
		logger.Info("API server configured", "port", apiServer.Port())
	} else {
		logger.Info("API server disabled")
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("API server error", "error", err)
			cancel()
			stopPipeline(cfg, udp, flusher, worker, cleaner, purger)
			return err
		}
	}

	cancel()

	// Intake stops first so the final flush sees every staged row.
	stopPipeline(cfg, udp, flusher, worker, cleaner, purger)

	if apiServer != nil {
		if err := <-serverDone; err != nil {
			logger.Error("API server shutdown error", "error", err)
			return err
		}
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// stopPipeline shuts the ingest components down in dependency order: the UDP
// listener first, then the flusher (which performs the final flush), then the
// background workers.
func stopPipeline(cfg *config.Config, udp *ingest.UDPListener, flusher *ingest.Flusher, worker *importer.Worker, cleaner *maintenance.Cleaner, purger *maintenance.Purger) {
	timeout := cfg.ShutdownTimeout

	if udp != nil {
		if err := udp.Stop(timeout); err != nil {
			logger.Warn("Syslog listener stop error", "error", err)
		}
	}
	if err := flusher.Stop(timeout); err != nil {
		logger.Warn("Flusher stop error", "error", err)
	}
	if err := worker.Stop(timeout); err != nil {
		logger.Warn("Import worker stop error", "error", err)
	}
	if err := cleaner.Stop(timeout); err != nil {
		logger.Warn("Retention cleaner stop error", "error", err)
	}
	if err := purger.Drain(timeout); err != nil {
		logger.Warn("Purge drain error", "error", err)
	}
}
