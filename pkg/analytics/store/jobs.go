package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// JobCompletion carries the final counters a finished import job reports.
type JobCompletion struct {
	LinesProcessed  int64
	ParseOK         int64
	ParseErr        int64
	FilteredID      int64
	RawLogsInserted int64
	EventsInserted  int64

	TimeMin        string
	TimeMax        string
	DeviceDetected string
	DeviceDisplay  string
}

func activeJobStatuses() []string {
	return []string{
		string(models.JobUploading),
		string(models.JobQueued),
		string(models.JobRunning),
	}
}

// CreateIngestJob persists a new job row, generating its id when absent.
func (s *GORMStore) CreateIngestJob(ctx context.Context, job *models.IngestJob) (string, error) {
	return createWithID(s.db, ctx, job, func(j *models.IngestJob, id string) { j.ID = id }, job.ID, models.ErrJobConflict)
}

// GetIngestJob retrieves a job by id. Returns models.ErrJobNotFound when it
// does not exist.
func (s *GORMStore) GetIngestJob(ctx context.Context, id string) (*models.IngestJob, error) {
	return getByField[models.IngestJob](s.db, ctx, "id", id, models.ErrJobNotFound)
}

// ListIngestJobs returns jobs newest-first. limit <= 0 returns all.
func (s *GORMStore) ListIngestJobs(ctx context.Context, limit int) ([]*models.IngestJob, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var jobs []*models.IngestJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list ingest jobs: %w", err)
	}
	return jobs, nil
}

// ListIngestJobsForDevice returns a device key's jobs newest-first.
// limit <= 0 returns all.
func (s *GORMStore) ListIngestJobsForDevice(ctx context.Context, deviceKey string, limit int) ([]*models.IngestJob, error) {
	query := s.db.WithContext(ctx).Where("device_key = ?", deviceKey).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var jobs []*models.IngestJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list ingest jobs for device: %w", err)
	}
	return jobs, nil
}

// ListActiveIngestJobs returns all uploading, queued, and running jobs,
// oldest first.
func (s *GORMStore) ListActiveIngestJobs(ctx context.Context) ([]*models.IngestJob, error) {
	var jobs []*models.IngestJob
	err := s.db.WithContext(ctx).
		Where("status IN ?", activeJobStatuses()).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list active ingest jobs: %w", err)
	}
	return jobs, nil
}

// HasActiveIngestJobs reports whether any job is uploading, queued, or
// running. Retention and purges stay out of the way while one is.
func (s *GORMStore) HasActiveIngestJobs(ctx context.Context) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.IngestJob{}).
		Where("status IN ?", activeJobStatuses()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count active ingest jobs: %w", err)
	}
	return count > 0, nil
}

// UpdateIngestJobUploadProgress records streamed byte counts while a file is
// being received.
func (s *GORMStore) UpdateIngestJobUploadProgress(ctx context.Context, id string, bytesReceived int64) error {
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ?", id).
		Update("bytes_received", bytesReceived)
	if res.Error != nil {
		return fmt.Errorf("update upload progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// QueueIngestJob seals the upload and hands the job to the worker: bytes_total
// snaps to what was actually received and the status moves to queued. Returns
// models.ErrJobConflict when the job is no longer uploading, e.g. it was
// canceled while the file streamed in.
func (s *GORMStore) QueueIngestJob(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ? AND status = ?", id, string(models.JobUploading)).
		Updates(map[string]interface{}{
			"status":      string(models.JobQueued),
			"bytes_total": gorm.Expr("bytes_received"),
		})
	if res.Error != nil {
		return fmt.Errorf("queue ingest job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobConflict
	}
	return nil
}

// ClaimNextIngestJob atomically takes ownership of the oldest queued job and
// moves it to running/parsing. Returns (nil, nil) when the queue is empty or
// another worker won the claim.
func (s *GORMStore) ClaimNextIngestJob(ctx context.Context) (*models.IngestJob, error) {
	var candidate models.IngestJob
	err := s.db.WithContext(ctx).
		Where("status = ? AND cancel_requested = ?", string(models.JobQueued), false).
		Order("created_at ASC").
		First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find queued job: %w", err)
	}

	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ? AND status = ?", candidate.ID, string(models.JobQueued)).
		Updates(map[string]interface{}{
			"status":     string(models.JobRunning),
			"phase":      models.PhaseParsing,
			"started_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("claim ingest job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetIngestJob(ctx, candidate.ID)
}

// SetIngestJobPhase updates the reporting phase of a running job.
func (s *GORMStore) SetIngestJobPhase(ctx context.Context, id, phase string) error {
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ?", id).
		Update("phase", phase)
	if res.Error != nil {
		return fmt.Errorf("set job phase: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// CompleteIngestJob records a successful run: final counters, the detected
// time range and device, and the done status. lines_total snaps to the
// processed count so progress reads 100% even for estimates.
func (s *GORMStore) CompleteIngestJob(ctx context.Context, id string, completion JobCompletion) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":            string(models.JobDone),
		"phase":             "",
		"finished_at":       now,
		"lines_total":       completion.LinesProcessed,
		"lines_processed":   completion.LinesProcessed,
		"parse_ok":          completion.ParseOK,
		"parse_err":         completion.ParseErr,
		"filtered_id":       completion.FilteredID,
		"raw_logs_inserted": completion.RawLogsInserted,
		"events_inserted":   completion.EventsInserted,
		"time_min":          completion.TimeMin,
		"time_max":          completion.TimeMax,
		"device_detected":   completion.DeviceDetected,
		"device_display":    completion.DeviceDisplay,
	}
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("complete ingest job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// FailIngestJob records a terminal failure with its classification. The
// message is truncated before storage.
func (s *GORMStore) FailIngestJob(ctx context.Context, id, message, errorType, errorStage string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        string(models.JobError),
		"phase":         "",
		"error_message": models.ClampErrorMessage(message),
		"error_type":    errorType,
		"error_stage":   errorStage,
		"finished_at":   now,
	}
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("fail ingest job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// FinalizeCanceledIngestJob moves a running job whose cancel flag the worker
// honored into the canceled state.
func (s *GORMStore) FinalizeCanceledIngestJob(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      string(models.JobCanceled),
			"phase":       "",
			"finished_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("finalize canceled job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// RequestIngestJobCancel cancels a job. Uploading and queued jobs cancel
// immediately; running jobs get the cooperative flag and the worker
// finalizes them at the next checkpoint. Terminal jobs return
// models.ErrJobNotCancelable.
func (s *GORMStore) RequestIngestJobCancel(ctx context.Context, id string) (*models.IngestJob, error) {
	job, err := s.GetIngestJob(ctx, id)
	if err != nil {
		return nil, err
	}
	status := models.IngestJobStatus(job.Status)
	if status.IsTerminal() {
		return nil, models.ErrJobNotCancelable
	}

	now := time.Now().UTC()
	if status == models.JobUploading || status == models.JobQueued {
		res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
			Where("id = ? AND status IN ?", id, []string{string(models.JobUploading), string(models.JobQueued)}).
			Updates(map[string]interface{}{
				"status":           string(models.JobCanceled),
				"cancel_requested": true,
				"finished_at":      now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("cancel ingest job: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return s.GetIngestJob(ctx, id)
		}
		// The worker claimed it in between; fall through to the cooperative
		// path.
	}
	if err := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("id = ?", id).
		Update("cancel_requested", true).Error; err != nil {
		return nil, fmt.Errorf("request ingest job cancel: %w", err)
	}
	return s.GetIngestJob(ctx, id)
}

// DeleteIngestJob removes a finished job record. Active jobs return
// models.ErrJobConflict; cancel them first.
func (s *GORMStore) DeleteIngestJob(ctx context.Context, id string) error {
	job, err := s.GetIngestJob(ctx, id)
	if err != nil {
		return err
	}
	if models.IngestJobStatus(job.Status).IsActive() {
		return models.ErrJobConflict
	}
	return deleteByField[models.IngestJob](s.db, ctx, "id", id, models.ErrJobNotFound)
}

// RecoverInterruptedIngestJobs marks jobs left uploading, queued, or running
// by a previous process as errored. A queued job that outlived its process
// already missed its worker; requeueing it silently would replay a file the
// operator may have re-uploaded since. Returns the number of jobs touched.
func (s *GORMStore) RecoverInterruptedIngestJobs(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("status IN ?", []string{
			string(models.JobUploading),
			string(models.JobQueued),
			string(models.JobRunning),
		}).
		Updates(map[string]interface{}{
			"status":        string(models.JobError),
			"error_message": "Server restarted",
			"error_stage":   models.StageProcessing,
			"finished_at":   now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("recover interrupted jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FailStalledIngestJobs errors out running jobs whose updated_at stopped
// moving, e.g. after a worker crash. Returns the number of jobs touched.
func (s *GORMStore) FailStalledIngestJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)
	res := s.db.WithContext(ctx).Model(&models.IngestJob{}).
		Where("status = ? AND updated_at < ?", string(models.JobRunning), cutoff).
		Updates(map[string]interface{}{
			"status":        string(models.JobError),
			"error_message": "job stalled",
			"finished_at":   now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("fail stalled jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
