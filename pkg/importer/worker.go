package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/classify"
	"github.com/kvasirlab/connwatch/pkg/ingest"
	"github.com/kvasirlab/connwatch/pkg/metrics"
)

const (
	// DefaultPollInterval is how often the worker looks for queued jobs.
	DefaultPollInterval = 1500 * time.Millisecond

	// DefaultStallAfter is the updated_at age past which a running job is
	// declared dead. Progress writes and the per-interval heartbeat keep a
	// live job well inside it.
	DefaultStallAfter = 5 * time.Minute

	// cancelCheckLines is how many lines are processed between cancel
	// checks; each check also heartbeats the job row.
	cancelCheckLines = 5000
)

// Store is the persistence surface the import worker needs.
type Store interface {
	ingest.BatchStore

	ClaimNextIngestJob(ctx context.Context) (*models.IngestJob, error)
	GetIngestJob(ctx context.Context, id string) (*models.IngestJob, error)
	SetIngestJobPhase(ctx context.Context, id, phase string) error
	CompleteIngestJob(ctx context.Context, id string, completion store.JobCompletion) error
	FailIngestJob(ctx context.Context, id, message, errorType, errorStage string) error
	FinalizeCanceledIngestJob(ctx context.Context, id string) error
	FailStalledIngestJobs(ctx context.Context, olderThan time.Duration) (int64, error)
	CanonicalDeviceKey(ctx context.Context, device string) (string, error)
	DeviceDisplayLabel(ctx context.Context, key string) (string, error)
	UpsertFirewallImport(ctx context.Context, deviceKey string, firstTs, lastTs *time.Time) error
}

// Config wires a Worker.
type Config struct {
	// SpoolDir holds uploaded files, one "{job_id}.log" per job.
	SpoolDir string

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration

	// StallAfter overrides DefaultStallAfter when positive.
	StallAfter time.Duration

	// Metrics observes job outcomes. Nil disables.
	Metrics metrics.ImporterMetrics
}

// SpoolPath returns the upload spool file for a job.
func SpoolPath(dir, jobID string) string {
	return filepath.Join(dir, jobID+".log")
}

// Worker drains the import job queue: one goroutine claims the oldest queued
// job, streams its spool file through the ingest pipeline, and records the
// outcome on the job row. Claims go through a conditional update, so extra
// workers are safe, just not useful against a single writer.
type Worker struct {
	store      Store
	classifier *classify.Classifier
	stats      *ingest.Stats
	cfg        Config

	mu        sync.Mutex
	started   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	wg        sync.WaitGroup
}

// NewWorker returns an unstarted worker. stats may be shared with the live
// listener so the pipeline counters cover both paths.
func NewWorker(st Store, classifier *classify.Classifier, stats *ingest.Stats, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StallAfter <= 0 {
		cfg.StallAfter = DefaultStallAfter
	}
	if stats == nil {
		stats = ingest.NewStats()
	}
	return &Worker{
		store:      st,
		classifier: classifier,
		stats:      stats,
		cfg:        cfg,
	}
}

// Start launches the queue loop. Safe to call once.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	w.started = true
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	w.wg.Add(1)
	go w.loop(ctx)
	go func() {
		w.wg.Wait()
		close(w.stoppedCh)
	}()
	logger.Info("import worker started",
		logger.Path(w.cfg.SpoolDir), "poll_interval", w.cfg.PollInterval.String())
	return nil
}

// Stop signals the loop and waits for the current job to wind down. A job
// cut short by shutdown stays running and is recovered at next boot.
func (w *Worker) Stop(timeout time.Duration) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = false
	close(w.stopCh)
	stoppedCh := w.stoppedCh
	w.mu.Unlock()

	select {
	case <-stoppedCh:
		logger.Info("import worker stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("import worker did not stop within %s", timeout)
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepStalled(ctx)
			for w.runNext(ctx) {
				select {
				case <-w.stopCh:
					return
				case <-ctx.Done():
					return
				default:
				}
			}
		}
	}
}

// sweepStalled declares abandoned running jobs dead. The current worker is
// idle between jobs, so its own claims are never in the sweep window.
func (w *Worker) sweepStalled(ctx context.Context) {
	n, err := w.store.FailStalledIngestJobs(ctx, w.cfg.StallAfter)
	if err != nil {
		logger.Warn("stalled job sweep failed", logger.Err(err))
		return
	}
	if n > 0 {
		logger.Warn("marked stalled import jobs as failed", logger.Count(int(n)))
	}
}

// runNext claims and processes one queued job. Returns true when a job ran,
// so the caller can drain the queue back to back.
func (w *Worker) runNext(ctx context.Context) bool {
	job, err := w.store.ClaimNextIngestJob(ctx)
	if err != nil {
		logger.Warn("failed to claim import job", logger.Err(err))
		return false
	}
	if job == nil {
		return false
	}

	logger.Info("import job started",
		logger.JobID(job.ID), logger.Filename(job.Filename))
	start := time.Now()
	w.processJob(ctx, job)

	final, err := w.store.GetIngestJob(ctx, job.ID)
	if err != nil {
		logger.Warn("failed to reload finished job", logger.JobID(job.ID), logger.Err(err))
		return true
	}
	metrics.RecordJob(w.cfg.Metrics, final.Status, time.Since(start))
	logger.Info("import job finished",
		logger.JobID(job.ID),
		logger.JobStatus(final.Status),
		"events_inserted", final.EventsInserted,
		"error", final.ErrorMessage)
	return true
}
