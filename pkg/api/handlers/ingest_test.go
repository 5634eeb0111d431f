//go:build integration

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/importer"
	"github.com/kvasirlab/connwatch/pkg/ingest"
)

// newUploadHandler builds an ingest handler over a fresh store with a small
// upload cap so the boundary is testable without gigabyte bodies.
func newUploadHandler(t *testing.T, maxBytes int64) (*IngestHandler, *store.GORMStore, string) {
	t.Helper()
	st := newTestStore(t)
	spoolDir := t.TempDir()
	h := NewIngestHandler(st, ingest.NewStats(), nil, spoolDir)
	h.maxBytes = maxBytes
	return h, st, spoolDir
}

// uploadRequest builds a multipart POST with optional form fields ahead of
// the file part, the way the browser client sends it.
func uploadRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("failed to write %s field: %v", name, err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create file part: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("failed to write file content: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/ingest/upload", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

// soleJob returns the single job row the test created.
func soleJob(t *testing.T, st *store.GORMStore) *models.IngestJob {
	t.Helper()
	jobs, err := st.ListIngestJobs(context.Background(), 0)
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, expected exactly one", len(jobs))
	}
	return jobs[0]
}

func TestUploadSpoolsAndQueues(t *testing.T) {
	const limit = int64(1024)
	h, st, spoolDir := newUploadHandler(t, limit)

	// A body of exactly the cap must go through.
	content := bytes.Repeat([]byte("x"), int(limit))
	w := httptest.NewRecorder()
	h.Upload(w, uploadRequest(t, map[string]string{"device": "fw1"}, "conn.log", content))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.OK || resp.JobID == "" {
		t.Fatalf("response = %+v", resp)
	}

	job := soleJob(t, st)
	if job.ID != resp.JobID {
		t.Errorf("job id = %s, expected %s", job.ID, resp.JobID)
	}
	if job.Status != string(models.JobQueued) {
		t.Errorf("status = %s, expected queued", job.Status)
	}
	if job.BytesReceived != limit || job.BytesTotal != limit {
		t.Errorf("bytes = %d/%d, expected %d/%d", job.BytesReceived, job.BytesTotal, limit, limit)
	}
	if job.DeviceKey != "fw1" || job.Filename != "conn.log" {
		t.Errorf("job = %s/%s", job.DeviceKey, job.Filename)
	}

	info, err := os.Stat(importer.SpoolPath(spoolDir, resp.JobID))
	if err != nil {
		t.Fatalf("spool file missing: %v", err)
	}
	if info.Size() != limit {
		t.Errorf("spool size = %d, expected %d", info.Size(), limit)
	}
}

func TestUploadRejectsOversize(t *testing.T) {
	const limit = int64(1024)
	h, st, spoolDir := newUploadHandler(t, limit)

	// One byte past the cap fails and lands the error on the job row.
	content := bytes.Repeat([]byte("x"), int(limit)+1)
	w := httptest.NewRecorder()
	h.Upload(w, uploadRequest(t, nil, "huge.log", content))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "File too large") {
		t.Errorf("body = %s", w.Body.String())
	}

	job := soleJob(t, st)
	if job.Status != string(models.JobError) {
		t.Errorf("status = %s, expected error", job.Status)
	}
	if job.ErrorStage != models.StageUpload {
		t.Errorf("error_stage = %s, expected upload", job.ErrorStage)
	}
	if job.ErrorType != "RequestEntityTooLarge" {
		t.Errorf("error_type = %s", job.ErrorType)
	}

	if _, err := os.Stat(importer.SpoolPath(spoolDir, job.ID)); !os.IsNotExist(err) {
		t.Errorf("spool file survived a rejected upload: %v", err)
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	h, st, spoolDir := newUploadHandler(t, 1024)

	w := httptest.NewRecorder()
	h.Upload(w, uploadRequest(t, nil, "empty.log", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Empty file") {
		t.Errorf("body = %s", w.Body.String())
	}

	job := soleJob(t, st)
	if job.Status != string(models.JobError) {
		t.Errorf("status = %s, expected error", job.Status)
	}
	if job.ErrorStage != models.StageUpload || job.ErrorType != "EmptyFile" {
		t.Errorf("error = %s/%s", job.ErrorStage, job.ErrorType)
	}
	if job.ErrorMessage != "Empty file" {
		t.Errorf("error_message = %q", job.ErrorMessage)
	}

	if _, err := os.Stat(importer.SpoolPath(spoolDir, job.ID)); !os.IsNotExist(err) {
		t.Errorf("spool file survived an empty upload: %v", err)
	}
}

func TestUploadMissingFilePart(t *testing.T) {
	h, _, _ := newUploadHandler(t, 1024)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("device", "fw1"); err != nil {
		t.Fatalf("failed to write device field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/ingest/upload", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	h.Upload(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Missing file") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestUploadStatus(t *testing.T) {
	h, st, _ := newUploadHandler(t, 1024)

	// Fail an upload so the status endpoint has error fields to report.
	w := httptest.NewRecorder()
	h.Upload(w, uploadRequest(t, nil, "empty.log", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("setup upload status = %d", w.Code)
	}
	jobID := soleJob(t, st).ID

	t.Run("reports the failed job", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/ingest/upload/"+jobID+"/status", nil)
		w := httptest.NewRecorder()
		h.UploadStatus(w, withURLParam(r, "id", jobID))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var resp JobStatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.JobID != jobID || resp.Status != string(models.JobError) {
			t.Errorf("response = %s/%s", resp.JobID, resp.Status)
		}
		if resp.ErrorStage != models.StageUpload || resp.ErrorMessage != "Empty file" {
			t.Errorf("error = %s/%q", resp.ErrorStage, resp.ErrorMessage)
		}
	})

	t.Run("unknown job is 404", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/ingest/upload/nope/status", nil)
		w := httptest.NewRecorder()
		h.UploadStatus(w, withURLParam(r, "id", "nope"))

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d", w.Code)
		}
	})
}

func TestFirewallListSeededDevices(t *testing.T) {
	st := newTestStore(t)
	seedEvents(t, st,
		&models.Event{Device: "fw1", FirewallKey: "fw1", EventType: models.EventConnOpen},
		&models.Event{Device: "fw1", FirewallKey: "fw1", EventType: models.EventConnClose},
		&models.Event{Device: "fw2", FirewallKey: "fw2", EventType: models.EventConnOpen},
	)
	h := NewFirewallHandler(st, nil)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/firewalls", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var rows []FirewallRow
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, expected fw1 and fw2", len(rows))
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.DeviceKey] = row.EventCount
	}
	if counts["fw1"] != 2 || counts["fw2"] != 1 {
		t.Errorf("event counts = %v", counts)
	}
}
