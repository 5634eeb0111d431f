package apiclient

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// UploadResult is the body of a successful POST /api/ingest/upload.
type UploadResult struct {
	OK    bool   `json:"ok"`
	JobID string `json:"job_id"`
}

// JobStatus is the body of GET /api/ingest/upload/{id}/status.
type JobStatus struct {
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

// CancelResult is the body of POST /api/ingest/upload/{id}/cancel.
type CancelResult struct {
	OK     bool   `json:"ok"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// UploadFile spools a syslog file to the server and queues a background
// import job for it. device optionally pins the job to a firewall key; pass
// "" to let the importer detect the device from the file.
//
// The request streams the file; it returns once the upload is spooled and the
// job is queued. Poll JobStatus with the returned job id to follow the import.
func (c *Client) UploadFile(path, device string) (*UploadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		// Field order matters: the server reads the stream sequentially and
		// only honors fields that precede the file part.
		if device != "" {
			if err := mw.WriteField("device", device); err != nil {
				_ = pw.CloseWithError(err)
				return
			}
		}
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/ingest/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result UploadResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// JobStatus returns the current status and counters of an ingest job.
func (c *Client) JobStatus(jobID string) (*JobStatus, error) {
	return getResource[JobStatus](c, resourcePath("/api/ingest/upload/%s/status", jobID))
}

// CancelJob requests cancellation of an ingest job. Uploading and queued jobs
// cancel immediately; running jobs stop at the worker's next checkpoint.
func (c *Client) CancelJob(jobID string) (*CancelResult, error) {
	return postResource[CancelResult](c, resourcePath("/api/ingest/upload/%s/cancel", jobID), nil)
}

// DeleteJob removes a finished job record and its spool file.
func (c *Client) DeleteJob(jobID string) error {
	return c.delete(resourcePath("/api/ingest/jobs/%s", jobID), nil)
}
