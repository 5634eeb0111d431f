package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
)

const (
	importConnOpen  = `<1>1 2026-04-01T09:30:00Z gw-lab CONN : id=600004 event=conn_open action=ALLOW [conn connsrcip=10.0.0.5 conndestip=93.184.216.34 conndestport=443 ]`
	importConnClose = `<1>1 2026-04-01T11:00:00Z gw-lab CONN : id=600005 event=conn_close [conn connsrcip=10.0.0.5 conndestip=93.184.216.34 ]`
	importOtherDev  = `<1>1 2026-04-01T10:00:00Z gw-edge CONN : id=600004 event=conn_open [conn connsrcip=10.0.1.9 conndestip=1.1.1.1 ]`
)

type importCall struct {
	key     string
	firstTs *time.Time
	lastTs  *time.Time
}

type failureRecord struct {
	message   string
	errorType string
	stage     string
}

// stubStore records every call the worker makes. Jobs sit in a queue the
// claim call drains.
type stubStore struct {
	mu sync.Mutex

	queue    []*models.IngestJob
	jobs     map[string]*models.IngestJob
	writeErr error
	cancel   bool

	batches     []*store.Batch
	phases      []string
	sweeps      int
	completions map[string]store.JobCompletion
	failures    map[string]failureRecord
	finalized   []string
	imports     []importCall
	displays    map[string]string
	canonical   map[string]string
}

func newStubStore(jobs ...*models.IngestJob) *stubStore {
	s := &stubStore{
		jobs:        make(map[string]*models.IngestJob),
		completions: make(map[string]store.JobCompletion),
		failures:    make(map[string]failureRecord),
		displays:    make(map[string]string),
		canonical:   make(map[string]string),
	}
	for _, j := range jobs {
		s.queue = append(s.queue, j)
		s.jobs[j.ID] = j
	}
	return s
}

func (s *stubStore) WriteBatch(_ context.Context, batch *store.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *stubStore) ClaimNextIngestJob(context.Context) (*models.IngestJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, nil
	}
	job := s.queue[0]
	s.queue = s.queue[1:]
	job.Status = string(models.JobRunning)
	claimed := *job
	return &claimed, nil
}

func (s *stubStore) GetIngestJob(_ context.Context, id string) (*models.IngestJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	loaded := *job
	if s.cancel {
		loaded.CancelRequested = true
	}
	return &loaded, nil
}

func (s *stubStore) SetIngestJobPhase(_ context.Context, id, phase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = append(s.phases, phase)
	if job, ok := s.jobs[id]; ok {
		job.Phase = phase
	}
	return nil
}

func (s *stubStore) CompleteIngestJob(_ context.Context, id string, completion store.JobCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions[id] = completion
	if job, ok := s.jobs[id]; ok {
		job.Status = string(models.JobDone)
		job.EventsInserted = completion.EventsInserted
	}
	return nil
}

func (s *stubStore) FailIngestJob(_ context.Context, id, message, errorType, errorStage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = failureRecord{message: message, errorType: errorType, stage: errorStage}
	if job, ok := s.jobs[id]; ok {
		job.SetError(errorStage, errorType, message)
	}
	return nil
}

func (s *stubStore) FinalizeCanceledIngestJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = append(s.finalized, id)
	if job, ok := s.jobs[id]; ok {
		job.Status = string(models.JobCanceled)
	}
	return nil
}

func (s *stubStore) FailStalledIngestJobs(context.Context, time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps++
	return 0, nil
}

func (s *stubStore) CanonicalDeviceKey(_ context.Context, device string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.canonical[device]; ok {
		return key, nil
	}
	return device, nil
}

func (s *stubStore) DeviceDisplayLabel(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if label, ok := s.displays[key]; ok {
		return label, nil
	}
	return key, nil
}

func (s *stubStore) UpsertFirewallImport(_ context.Context, deviceKey string, firstTs, lastTs *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imports = append(s.imports, importCall{key: deviceKey, firstTs: firstTs, lastTs: lastTs})
	return nil
}

func writeSpool(t *testing.T, dir, jobID, content string) string {
	t.Helper()
	path := SpoolPath(dir, jobID)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestWorker(st *stubStore, dir string) *Worker {
	return NewWorker(st, nil, nil, Config{
		SpoolDir:     dir,
		PollInterval: 10 * time.Millisecond,
	})
}

func TestProcessJobCompletes(t *testing.T) {
	dir := t.TempDir()
	job := &models.IngestJob{ID: "job-1", Status: string(models.JobQueued), Filename: "fw.log"}
	st := newStubStore(job)

	content := importConnOpen + "\r\n" + importOtherDev + "\n\n" + importConnClose + "\n" +
		"    continuation text for the last record"
	spool := writeSpool(t, dir, job.ID, content)

	w := newTestWorker(st, dir)
	claimed, err := st.ClaimNextIngestJob(context.Background())
	require.NoError(t, err)
	w.processJob(context.Background(), claimed)

	completion, ok := st.completions["job-1"]
	require.True(t, ok, "job should complete")
	assert.Equal(t, int64(4), completion.LinesProcessed)
	assert.Equal(t, int64(3), completion.ParseOK)
	assert.Equal(t, int64(0), completion.ParseErr)
	assert.Equal(t, int64(3), completion.RawLogsInserted)
	assert.Equal(t, int64(3), completion.EventsInserted)
	assert.Equal(t, "2026-04-01T09:30:00Z", completion.TimeMin)
	assert.Equal(t, "2026-04-01T11:00:00Z", completion.TimeMax)
	assert.Equal(t, "gw-lab", completion.DeviceDetected, "most frequent device wins")
	assert.Equal(t, "gw-lab", completion.DeviceDisplay)

	require.Len(t, st.batches, 1, "one finalizing flush")
	batch := st.batches[0]
	require.Len(t, batch.RawLogs, 3)
	assert.Contains(t, batch.RawLogs[2].RawRecord, "continuation text")
	require.NotNil(t, batch.Job)
	assert.Equal(t, "job-1", batch.Job.JobID)
	assert.Equal(t, int64(4), batch.Job.LinesProcessed)

	assert.Equal(t, []string{models.PhaseFinalizing}, st.phases)

	require.Len(t, st.imports, 1)
	assert.Equal(t, "gw-lab", st.imports[0].key)
	require.NotNil(t, st.imports[0].firstTs)
	assert.Equal(t, "2026-04-01T09:30:00Z", st.imports[0].firstTs.UTC().Format(time.RFC3339))
	assert.Equal(t, "2026-04-01T11:00:00Z", st.imports[0].lastTs.UTC().Format(time.RFC3339))

	_, statErr := os.Stat(spool)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "spool should be removed")
}

func TestProcessJobKeepsRawImportKeyForHAMember(t *testing.T) {
	dir := t.TempDir()
	job := &models.IngestJob{ID: "job-ha", Status: string(models.JobQueued)}
	st := newStubStore(job)
	st.canonical["gw-ha_Master"] = "ha:gw-ha"
	st.displays["ha:gw-ha"] = "gw-ha (HA)"

	line := `<1>1 2026-04-01T09:30:00Z gw-ha_Master CONN : id=600004 event=conn_open [conn connsrcip=10.0.0.6 conndestip=8.8.8.8 ]`
	writeSpool(t, dir, job.ID, line+"\n")

	w := newTestWorker(st, dir)
	claimed, err := st.ClaimNextIngestJob(context.Background())
	require.NoError(t, err)
	w.processJob(context.Background(), claimed)

	completion := st.completions["job-ha"]
	assert.Equal(t, "gw-ha_Master", completion.DeviceDetected)
	assert.Equal(t, "gw-ha (HA)", completion.DeviceDisplay,
		"display goes through cluster grouping")

	require.Len(t, st.imports, 1)
	assert.Equal(t, "gw-ha_Master", st.imports[0].key,
		"inventory keeps the raw member name")
}

func TestProcessJobOperatorDeviceWins(t *testing.T) {
	dir := t.TempDir()
	job := &models.IngestJob{ID: "job-op", Status: string(models.JobQueued), DeviceKey: "chosen-fw"}
	st := newStubStore(job)
	writeSpool(t, dir, job.ID, importConnOpen+"\n")

	w := newTestWorker(st, dir)
	claimed, err := st.ClaimNextIngestJob(context.Background())
	require.NoError(t, err)
	w.processJob(context.Background(), claimed)

	completion := st.completions["job-op"]
	assert.Equal(t, "chosen-fw", completion.DeviceDetected)
	require.Len(t, st.imports, 1)
	assert.Equal(t, "chosen-fw", st.imports[0].key)
}

func TestProcessJobMissingSpool(t *testing.T) {
	dir := t.TempDir()
	job := &models.IngestJob{ID: "job-gone", Status: string(models.JobQueued)}
	st := newStubStore(job)

	w := newTestWorker(st, dir)
	claimed, err := st.ClaimNextIngestJob(context.Background())
	require.NoError(t, err)
	w.processJob(context.Background(), claimed)

	failure, ok := st.failures["job-gone"]
	require.True(t, ok)
	assert.Contains(t, failure.message, "Upload file not found")
	assert.Equal(t, models.StageUpload, failure.stage)
	assert.NotEmpty(t, failure.errorType)
	assert.Empty(t, st.completions)
}

func TestProcessJobPersistFailure(t *testing.T) {
	dir := t.TempDir()
	job := &models.IngestJob{ID: "job-db", Status: string(models.JobQueued)}
	st := newStubStore(job)
	st.writeErr = errors.New("database is locked")
	spool := writeSpool(t, dir, job.ID, importConnOpen+"\n")

	w := newTestWorker(st, dir)
	claimed, err := st.ClaimNextIngestJob(context.Background())
	require.NoError(t, err)
	w.processJob(context.Background(), claimed)

	failure, ok := st.failures["job-db"]
	require.True(t, ok)
	assert.Equal(t, models.StagePersist, failure.stage)
	assert.Contains(t, failure.message, "persist ingest batch")
	assert.Equal(t, "*errors.errorString", failure.errorType)
	assert.Empty(t, st.completions)

	_, statErr := os.Stat(spool)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "spool removed on failure too")
}

func TestProcessJobCancelRequest(t *testing.T) {
	dir := t.TempDir()
	job := &models.IngestJob{ID: "job-stop", Status: string(models.JobQueued)}
	st := newStubStore(job)
	st.cancel = true

	var sb strings.Builder
	for i := 0; i < cancelCheckLines+100; i++ {
		fmt.Fprintf(&sb, "<1>1 2026-04-01T09:30:00Z gw-lab CONN : id=600004 event=conn_open seq=%d\n", i)
	}
	spool := writeSpool(t, dir, job.ID, sb.String())

	w := newTestWorker(st, dir)
	claimed, err := st.ClaimNextIngestJob(context.Background())
	require.NoError(t, err)
	w.processJob(context.Background(), claimed)

	assert.Equal(t, []string{"job-stop"}, st.finalized)
	assert.Empty(t, st.completions)
	assert.Empty(t, st.failures)
	assert.NotEmpty(t, st.batches, "partial rows flushed before finalizing")

	_, statErr := os.Stat(spool)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestWorkerDrainsQueue(t *testing.T) {
	dir := t.TempDir()
	jobA := &models.IngestJob{ID: "job-a", Status: string(models.JobQueued)}
	jobB := &models.IngestJob{ID: "job-b", Status: string(models.JobQueued)}
	st := newStubStore(jobA, jobB)
	writeSpool(t, dir, jobA.ID, importConnOpen+"\n")
	writeSpool(t, dir, jobB.ID, importConnClose+"\n")

	w := newTestWorker(st, dir)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop(time.Second) }()

	require.Eventually(t, func() bool {
		st.mu.Lock()
		defer st.mu.Unlock()
		return len(st.completions) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop(time.Second))
	require.NoError(t, w.Stop(time.Second), "second stop is a no-op")

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Contains(t, st.completions, "job-a")
	assert.Contains(t, st.completions, "job-b")
	assert.Greater(t, st.sweeps, 0, "stall sweep runs each poll")
}

func TestStageForError(t *testing.T) {
	persistErr := &stageError{stage: models.StagePersist, err: errors.New("write failed")}
	assert.Equal(t, models.StagePersist, stageForError(persistErr))
	assert.Equal(t, models.StagePersist, stageForError(fmt.Errorf("wrapped: %w", persistErr)))
	assert.Equal(t, models.StageProcessing, stageForError(errors.New("plain")))
}

func TestRootErrorType(t *testing.T) {
	base := os.ErrNotExist
	wrapped := fmt.Errorf("open spool: %w", fmt.Errorf("inner: %w", base))
	assert.Equal(t, fmt.Sprintf("%T", base), rootErrorType(wrapped))
	assert.Equal(t, "", rootErrorType(nil))
}
