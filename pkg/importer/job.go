package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/internal/telemetry"
	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/ingest"
	"github.com/kvasirlab/connwatch/pkg/netwall"
)

const spoolReadSize = 64 * 1024

// errShutdown aborts the current job without a terminal status; boot
// recovery marks it failed and removes the spool on the next start.
var errShutdown = errors.New("import worker shutting down")

// stageError tags a processing failure with the job stage it belongs to.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func stageForError(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return models.StageProcessing
}

// rootErrorType names the innermost error's type, the closest analog to an
// exception class for the job's error_type column.
func rootErrorType(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return fmt.Sprintf("%T", err)
}

// processJob streams one claimed job's spool file through the ingest
// pipeline and records the outcome. The spool is removed on every terminal
// outcome; only a shutdown abort leaves it for boot recovery.
func (w *Worker) processJob(ctx context.Context, job *models.IngestJob) {
	ctx, span := telemetry.StartJobSpan(ctx, job.ID, job.Filename)
	defer span.End()

	spool := SpoolPath(w.cfg.SpoolDir, job.ID)
	keepSpool := false
	defer func() {
		if keepSpool {
			return
		}
		if err := os.Remove(spool); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove spool file", logger.Path(spool), logger.Err(err))
		}
	}()

	file, err := os.Open(spool)
	if err != nil {
		w.failJob(ctx, job.ID, fmt.Sprintf("Upload file not found: %s", spool), err, models.StageUpload)
		return
	}
	defer file.Close()

	collector := ingest.NewUploadCollector()
	var lines int64
	ing := ingest.New(ingest.Config{
		Store:      w.store,
		Classifier: w.classifier,
		Stats:      w.stats,
		Source:     store.BatchSourceImport,
		Collector:  collector,
		Progress: func() *store.JobProgress {
			return &store.JobProgress{
				JobID:           job.ID,
				LinesProcessed:  lines,
				ParseOK:         collector.ParseOK,
				ParseErr:        collector.ParseErrors,
				FilteredID:      collector.FilteredID,
				RawLogsInserted: collector.RawInserted,
				EventsInserted:  collector.EventsInserted,
				TimeMin:         collector.TimeMinISO(),
				TimeMax:         collector.TimeMaxISO(),
			}
		},
	})

	canceled, err := w.consumeSpool(ctx, file, job.ID, ing, &lines)
	switch {
	case canceled:
		w.cancelJob(ctx, job.ID, ing)
		return
	case errors.Is(err, errShutdown):
		keepSpool = true
		logger.Info("import job interrupted by shutdown", logger.JobID(job.ID))
		return
	case err != nil:
		w.failJob(ctx, job.ID, err.Error(), err, stageForError(err))
		return
	}

	if err := w.store.SetIngestJobPhase(ctx, job.ID, models.PhaseFinalizing); err != nil {
		logger.Warn("failed to set finalizing phase", logger.JobID(job.ID), logger.Err(err))
	}
	if err := ing.Flush(ctx); err != nil {
		w.failJob(ctx, job.ID, err.Error(), err, models.StagePersist)
		return
	}
	w.completeJob(ctx, job, collector, lines)
}

// consumeSpool reads the file in chunks, splits it into lines on either line
// ending, and feeds non-blank lines through a per-job record assembler.
// Every cancelCheckLines lines it reloads the job row, honoring cancel
// requests and heartbeating the phase so the stall sweep sees activity.
func (w *Worker) consumeSpool(ctx context.Context, file *os.File, jobID string, ing *ingest.Ingestor, lines *int64) (bool, error) {
	assembler := netwall.NewReconstructor()
	buf := make([]byte, spoolReadSize)
	var pending string
	var sinceCheck int64

	handleLine := func(line string) error {
		if strings.TrimSpace(line) == "" {
			return nil
		}
		*lines++
		sinceCheck++
		if records := assembler.Feed(line); len(records) > 0 {
			if err := ing.ProcessRecords(ctx, records); err != nil {
				return &stageError{stage: models.StagePersist, err: err}
			}
		}
		return nil
	}

	for {
		select {
		case <-w.stopCh:
			return false, errShutdown
		case <-ctx.Done():
			return false, errShutdown
		default:
		}
		if sinceCheck >= cancelCheckLines {
			sinceCheck = 0
			canceled, err := w.checkCancel(ctx, jobID)
			if err != nil {
				logger.Warn("cancel check failed", logger.JobID(jobID), logger.Err(err))
			} else if canceled {
				return true, nil
			}
		}

		n, readErr := file.Read(buf)
		if n > 0 {
			pending += string(buf[:n])
			for {
				idx := strings.IndexAny(pending, "\n\r")
				if idx < 0 {
					break
				}
				line := pending[:idx]
				pending = pending[idx+1:]
				if err := handleLine(line); err != nil {
					return false, err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return false, &stageError{
				stage: models.StageProcessing,
				err:   fmt.Errorf("read spool file: %w", readErr),
			}
		}
	}

	if err := handleLine(pending); err != nil {
		return false, err
	}
	if rest := assembler.Flush(); len(rest) > 0 {
		if err := ing.ProcessRecords(ctx, rest); err != nil {
			return false, &stageError{stage: models.StagePersist, err: err}
		}
	}
	return false, nil
}

// checkCancel reloads the job row. A non-canceled check doubles as a
// heartbeat: large files can go minutes between batch flushes, and the phase
// write keeps updated_at inside the stall window.
func (w *Worker) checkCancel(ctx context.Context, jobID string) (bool, error) {
	job, err := w.store.GetIngestJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.CancelRequested {
		return true, nil
	}
	if err := w.store.SetIngestJobPhase(ctx, jobID, models.PhaseParsing); err != nil {
		logger.Warn("job heartbeat failed", logger.JobID(jobID), logger.Err(err))
	}
	return false, nil
}

// cancelJob lands whatever was already staged, then finalizes the job as
// canceled with the counters it reached.
func (w *Worker) cancelJob(ctx context.Context, jobID string, ing *ingest.Ingestor) {
	if err := ing.Flush(ctx); err != nil {
		logger.Warn("failed to flush partial batch of canceled job", logger.JobID(jobID), logger.Err(err))
	}
	if err := w.store.FinalizeCanceledIngestJob(ctx, jobID); err != nil {
		logger.Warn("failed to finalize canceled job", logger.JobID(jobID), logger.Err(err))
		return
	}
	logger.Info("import job canceled", logger.JobID(jobID))
}

// completeJob attributes the upload to a device, refreshes the firewall
// inventory, and marks the job done. Import inventory rows keep the raw
// device name; only the operator-facing display label goes through cluster
// grouping.
func (w *Worker) completeJob(ctx context.Context, job *models.IngestJob, collector *ingest.UploadCollector, lines int64) {
	detected := collector.PrimaryDevice(job.DeviceKey)

	displayKey := detected
	if key, err := w.store.CanonicalDeviceKey(ctx, detected); err != nil {
		logger.Warn("failed to canonicalize detected device", logger.Device(detected), logger.Err(err))
	} else if key != "" {
		displayKey = key
	}
	display, err := w.store.DeviceDisplayLabel(ctx, displayKey)
	if err != nil {
		logger.Warn("failed to resolve device display label", logger.Device(displayKey), logger.Err(err))
		display = displayKey
	}

	if importKey := netwall.CanonicalKeyForImport(detected); importKey != "" && importKey != "unknown" {
		var firstTs, lastTs *time.Time
		if min, max, ok := collector.TimeRange(); ok {
			firstTs, lastTs = &min, &max
		}
		if err := w.store.UpsertFirewallImport(ctx, importKey, firstTs, lastTs); err != nil {
			logger.Warn("failed to update firewall inventory", logger.Device(importKey), logger.Err(err))
		}
	}

	completion := store.JobCompletion{
		LinesProcessed:  lines,
		ParseOK:         collector.ParseOK,
		ParseErr:        collector.ParseErrors,
		FilteredID:      collector.FilteredID,
		RawLogsInserted: collector.RawInserted,
		EventsInserted:  collector.EventsInserted,
		TimeMin:         collector.TimeMinISO(),
		TimeMax:         collector.TimeMaxISO(),
		DeviceDetected:  detected,
		DeviceDisplay:   display,
	}
	if err := w.store.CompleteIngestJob(ctx, job.ID, completion); err != nil {
		logger.Warn("failed to mark import job done", logger.JobID(job.ID), logger.Err(err))
	}
}

// failJob records a terminal failure on the job row.
func (w *Worker) failJob(ctx context.Context, jobID, message string, cause error, stage string) {
	logger.Error("import job failed",
		logger.JobID(jobID), logger.Stage(stage), logger.Err(cause))
	if err := w.store.FailIngestJob(ctx, jobID, message, rootErrorType(cause), stage); err != nil {
		logger.Warn("failed to record job failure", logger.JobID(jobID), logger.Err(err))
	}
}
