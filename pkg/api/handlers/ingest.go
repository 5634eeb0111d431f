package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/importer"
	"github.com/kvasirlab/connwatch/pkg/ingest"
	"github.com/kvasirlab/connwatch/pkg/netwall"
)

const (
	// uploadMaxBytes caps spooled uploads at 1 GiB.
	uploadMaxBytes = 1 << 30

	// uploadChunkSize is the copy buffer for streaming uploads to the spool.
	uploadChunkSize = 4 * 1024 * 1024

	// uploadProgressEvery is how many received bytes pass between
	// bytes_received checkpoints on the job row.
	uploadProgressEvery = 512 * 1024

	// ingestReadSize is the read buffer for the synchronous file endpoint.
	ingestReadSize = 64 * 1024
)

// IngestHandler handles file ingestion endpoints: the synchronous
// pipe-through endpoint and the spooled background upload jobs.
type IngestHandler struct {
	store    store.Store
	stats    *ingest.Stats
	ingestor *ingest.Ingestor
	spoolDir string
	maxBytes int64
}

// NewIngestHandler creates a new ingest handler. spoolDir is created lazily
// on the first upload.
func NewIngestHandler(store store.Store, stats *ingest.Stats, ingestor *ingest.Ingestor, spoolDir string) *IngestHandler {
	return &IngestHandler{
		store:    store,
		stats:    stats,
		ingestor: ingestor,
		spoolDir: spoolDir,
		maxBytes: uploadMaxBytes,
	}
}

// IngestFile handles POST /api/ingest/file - stream an uploaded file through
// the same pipeline as live UDP traffic.
//
// The request blocks until every line has been processed. Large files belong
// on the upload endpoint instead.
func (h *IngestHandler) IngestFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, detail := uploadFilePart(r)
	if file == nil {
		BadRequest(w, detail)
		return
	}

	assembler := netwall.NewReconstructor()
	buf := make([]byte, ingestReadSize)
	var pending string

	handleLine := func(line string) error {
		if strings.TrimSpace(line) == "" {
			return nil
		}
		h.stats.NoteLine(line)
		if records := assembler.Feed(line); len(records) > 0 {
			return h.ingestor.ProcessRecords(ctx, records)
		}
		return nil
	}

	for {
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
					InternalServerError(w, "Failed to process records")
					return
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			BadRequest(w, "Failed to read uploaded file")
			return
		}
	}

	if err := handleLine(pending); err != nil {
		InternalServerError(w, "Failed to process records")
		return
	}
	if rest := assembler.Flush(); len(rest) > 0 {
		if err := h.ingestor.ProcessRecords(ctx, rest); err != nil {
			InternalServerError(w, "Failed to process records")
			return
		}
	}
	if err := h.ingestor.Flush(ctx); err != nil {
		InternalServerError(w, "Failed to flush ingest pipeline")
		return
	}

	WriteJSONOK(w, map[string]string{"status": "ok"})
}

// uploadFilePart walks the multipart stream until the "file" part. Returns
// nil and a client-facing detail when there is none. Form fields are only
// recognized when they precede the file.
func uploadFilePart(r *http.Request) (*multipart.Part, string) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "Invalid multipart request"
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, "Missing file"
		}
		if err != nil {
			return nil, "Invalid multipart request"
		}
		if part.FormName() == "file" {
			return part, ""
		}
		_, _ = io.Copy(io.Discard, part)
	}
}

// UploadResponse is the body of a successful POST /api/ingest/upload.
type UploadResponse struct {
	OK    bool   `json:"ok"`
	JobID string `json:"job_id"`
}

// Upload handles POST /api/ingest/upload - spool a syslog file to disk and
// queue a background import job for it.
//
// The multipart stream may carry a "device" field ahead of the file to pin
// the job to a firewall; a "source" field is accepted and ignored. The
// response carries the job id to poll on the status endpoint.
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		BadRequest(w, "Invalid multipart request")
		return
	}

	deviceKey := ""
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			BadRequest(w, "Missing file")
			return
		}
		if err != nil {
			BadRequest(w, "Invalid multipart request")
			return
		}
		switch part.FormName() {
		case "device":
			value, _ := io.ReadAll(io.LimitReader(part, 1024))
			deviceKey = strings.TrimSpace(string(value))
		case "file":
			h.receiveUpload(w, r, part, deviceKey)
			return
		default:
			// "source" and anything else: accepted, unused.
			_, _ = io.Copy(io.Discard, part)
		}
	}
}

// receiveUpload creates the job row and streams the file part to its spool
// file, then queues the job for the import worker.
func (h *IngestHandler) receiveUpload(w http.ResponseWriter, r *http.Request, part *multipart.Part, deviceKey string) {
	ctx := r.Context()

	filename := part.FileName()
	if filename == "" {
		BadRequest(w, "Missing filename")
		return
	}

	jobID, err := h.store.CreateIngestJob(ctx, &models.IngestJob{
		Status:    string(models.JobUploading),
		Filename:  filename,
		DeviceKey: deviceKey,
	})
	if err != nil {
		InternalServerError(w, "Failed to create ingest job")
		return
	}

	if err := os.MkdirAll(h.spoolDir, 0o755); err != nil {
		h.failUpload(jobID, "", err)
		InternalServerError(w, "Failed to prepare upload spool")
		return
	}
	spool := importer.SpoolPath(h.spoolDir, jobID)

	total, err := h.streamToSpool(ctx, jobID, spool, part)
	switch {
	case errors.Is(err, models.ErrUploadTooLarge):
		h.failUpload(jobID, spool, err)
		RequestEntityTooLarge(w, "File too large (max 1 GB)")
		return
	case errors.Is(err, models.ErrEmptyFile):
		h.failUpload(jobID, spool, err)
		BadRequest(w, "Empty file")
		return
	case err != nil:
		h.failUpload(jobID, spool, err)
		InternalServerError(w, "Upload failed")
		return
	}

	if err := h.store.UpdateIngestJobUploadProgress(ctx, jobID, total); err != nil {
		logger.Warn("upload progress update failed", logger.JobID(jobID), logger.Err(err))
	}
	if err := h.store.QueueIngestJob(ctx, jobID); err != nil {
		_ = os.Remove(spool)
		if errors.Is(err, models.ErrJobConflict) {
			Conflict(w, "Job was canceled during upload")
			return
		}
		InternalServerError(w, "Failed to queue ingest job")
		return
	}

	logger.Info("upload spooled",
		logger.JobID(jobID),
		logger.Filename(filename),
		logger.Bytes(total),
	)
	WriteJSONOK(w, UploadResponse{OK: true, JobID: jobID})
}

// streamToSpool copies the file part to the spool path, enforcing the size
// cap and checkpointing bytes_received as the file arrives.
func (h *IngestHandler) streamToSpool(ctx context.Context, jobID, spool string, part *multipart.Part) (int64, error) {
	out, err := os.Create(spool)
	if err != nil {
		return 0, fmt.Errorf("create spool file: %w", err)
	}
	defer out.Close()

	buf := make([]byte, uploadChunkSize)
	var total, sinceCheckpoint int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > h.maxBytes {
				return total, models.ErrUploadTooLarge
			}
			if _, err := out.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("write spool file: %w", err)
			}
			sinceCheckpoint += int64(n)
			if sinceCheckpoint >= uploadProgressEvery {
				sinceCheckpoint = 0
				if err := h.store.UpdateIngestJobUploadProgress(ctx, jobID, total); err != nil {
					logger.Warn("upload progress update failed", logger.JobID(jobID), logger.Err(err))
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return total, fmt.Errorf("read upload stream: %w", readErr)
		}
	}
	if err := out.Close(); err != nil {
		return total, fmt.Errorf("close spool file: %w", err)
	}
	if total == 0 {
		return 0, models.ErrEmptyFile
	}
	return total, nil
}

// failUpload records a terminal upload failure and removes the spool file.
// Uses a fresh context so a canceled request still lands the error on the
// job row.
func (h *IngestHandler) failUpload(jobID, spool string, cause error) {
	if spool != "" {
		_ = os.Remove(spool)
	}

	message := cause.Error()
	errorType := "IOError"
	switch {
	case errors.Is(cause, models.ErrUploadTooLarge):
		message = "File too large (max 1 GB)"
		errorType = "RequestEntityTooLarge"
	case errors.Is(cause, models.ErrEmptyFile):
		message = "Empty file"
		errorType = "EmptyFile"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.FailIngestJob(ctx, jobID, message, errorType, models.StageUpload); err != nil {
		logger.Warn("failed to mark upload error", logger.JobID(jobID), logger.Err(err))
	}
}

// JobStatusResponse is the body of GET /api/ingest/upload/{id}/status.
type JobStatusResponse struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	Phase           string  `json:"phase"`
	Progress        float64 `json:"progress"`
	Filename        string  `json:"filename"`
	BytesTotal      int64   `json:"bytes_total"`
	BytesReceived   int64   `json:"bytes_received"`
	LinesTotal      int64   `json:"lines_total"`
	LinesProcessed  int64   `json:"lines_processed"`
	ParseOK         int64   `json:"parse_ok"`
	ParseErr        int64   `json:"parse_err"`
	FilteredID      int64   `json:"filtered_id"`
	RawLogsInserted int64   `json:"raw_logs_inserted"`
	EventsInserted  int64   `json:"events_inserted"`
	Imported        int64   `json:"imported"`
	Discarded       int64   `json:"discarded"`
	TimeMin         string  `json:"time_min"`
	TimeMax         string  `json:"time_max"`
	DeviceDetected  string  `json:"device_detected"`
	DeviceKey       string  `json:"device_key"`
	DeviceDisplay   string  `json:"device_display"`
	ErrorMessage    string  `json:"error_message"`
	ErrorType       string  `json:"error_type"`
	ErrorStage      string  `json:"error_stage"`
}

func jobToStatusResponse(job *models.IngestJob) JobStatusResponse {
	deviceKey, _ := netwall.CanonicalKey(job.DeviceDetected)
	return JobStatusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		Phase:           job.CurrentPhase(),
		Progress:        round4(job.Progress()),
		Filename:        job.Filename,
		BytesTotal:      job.BytesTotal,
		BytesReceived:   job.BytesReceived,
		LinesTotal:      job.LinesTotal,
		LinesProcessed:  job.LinesProcessed,
		ParseOK:         job.ParseOK,
		ParseErr:        job.ParseErr,
		FilteredID:      job.FilteredID,
		RawLogsInserted: job.RawLogsInserted,
		EventsInserted:  job.EventsInserted,
		Imported:        job.RawLogsInserted,
		Discarded:       job.FilteredID + job.ParseErr,
		TimeMin:         job.TimeMin,
		TimeMax:         job.TimeMax,
		DeviceDetected:  job.DeviceDetected,
		DeviceKey:       deviceKey,
		DeviceDisplay:   job.DeviceDisplay,
		ErrorMessage:    job.ErrorMessage,
		ErrorType:       job.ErrorType,
		ErrorStage:      job.ErrorStage,
	}
}

// UploadStatus handles GET /api/ingest/upload/{id}/status - current status
// and counters for an ingest job.
func (h *IngestHandler) UploadStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.store.GetIngestJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			NotFound(w, "Job not found")
			return
		}
		InternalServerError(w, "Failed to get job")
		return
	}

	WriteJSONOK(w, jobToStatusResponse(job))
}

// CancelResponse is the body of POST /api/ingest/upload/{id}/cancel.
type CancelResponse struct {
	OK     bool   `json:"ok"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CancelUpload handles POST /api/ingest/upload/{id}/cancel.
//
// Uploading and queued jobs cancel immediately; running jobs are flagged and
// the worker stops at its next checkpoint. Finished jobs return 409.
func (h *IngestHandler) CancelUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.store.RequestIngestJobCancel(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrJobNotFound):
			NotFound(w, "Job not found")
		case errors.Is(err, models.ErrJobNotCancelable):
			Conflict(w, "Job already finished")
		default:
			InternalServerError(w, "Failed to cancel job")
		}
		return
	}

	// Immediate cancels leave no worker behind to clean the spool.
	if models.IngestJobStatus(job.Status) == models.JobCanceled {
		_ = os.Remove(importer.SpoolPath(h.spoolDir, id))
	}

	WriteJSONOK(w, CancelResponse{OK: true, JobID: job.ID, Status: job.Status})
}

// DeleteJob handles DELETE /api/ingest/jobs/{id} - remove a finished job
// record and its spool file, if one is still around.
func (h *IngestHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteIngestJob(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, models.ErrJobNotFound):
			NotFound(w, "Job not found")
		case errors.Is(err, models.ErrJobConflict):
			Conflict(w, "Job is still active; cancel it first")
		default:
			InternalServerError(w, "Failed to delete job")
		}
		return
	}

	_ = os.Remove(importer.SpoolPath(h.spoolDir, id))

	WriteNoContent(w)
}
