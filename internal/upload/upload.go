// Package upload transmits coverage reports to an external coverage
// tracking service. A single request is made per report: the runner
// defines no retry or backoff behavior, failures surface to the caller.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/harrison/stagehand/internal/models"
)

// ErrMissingToken indicates the upload token environment variable is unset.
var ErrMissingToken = fmt.Errorf("upload token not set")

// Uploader sends coverage artifacts to a coverage service endpoint.
type Uploader struct {
	url      string
	tokenEnv string
	client   *http.Client
}

// NewUploader creates an Uploader for the given endpoint. tokenEnv names
// the environment variable holding the bearer token. timeout bounds each
// request.
func NewUploader(url, tokenEnv string, timeout time.Duration) *Uploader {
	return &Uploader{
		url:      url,
		tokenEnv: tokenEnv,
		client:   &http.Client{Timeout: timeout},
	}
}

// NewUploaderWithClient creates an Uploader with a caller-provided HTTP
// client. Useful for testing.
func NewUploaderWithClient(url, tokenEnv string, client *http.Client) *Uploader {
	return &Uploader{url: url, tokenEnv: tokenEnv, client: client}
}

// Metadata identifies the run a coverage report belongs to.
type Metadata struct {
	RunID    string
	Workflow string
	Job      string
	EnvName  string
	Runtime  string
	Commit   string
	Branch   string
}

// Upload sends the coverage report file as a multipart request with run
// metadata as form fields. A non-2xx response is an error.
func (u *Uploader) Upload(ctx context.Context, reportPath string, meta Metadata) error {
	token := os.Getenv(u.tokenEnv)
	if token == "" {
		return fmt.Errorf("%w: environment variable %s is empty", ErrMissingToken, u.tokenEnv)
	}

	file, err := os.Open(reportPath)
	if err != nil {
		return fmt.Errorf("failed to open coverage report: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := map[string]string{
		"run_id":   meta.RunID,
		"workflow": meta.Workflow,
		"job":      meta.Job,
		"env_name": meta.EnvName,
		"runtime":  meta.Runtime,
		"commit":   meta.Commit,
		"branch":   meta.Branch,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	part, err := writer.CreateFormFile("report", "coverage.xml")
	if err != nil {
		return fmt.Errorf("failed to create report part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy report contents: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, &body)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a short error snippet for the message, ignore read errors
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	return nil
}

// ReportFromResult builds upload metadata from a job result and run info.
func ReportFromResult(runID string, workflow string, event models.Event, result models.JobResult) Metadata {
	return Metadata{
		RunID:    runID,
		Workflow: workflow,
		Job:      result.Job.Name,
		EnvName:  result.EnvName,
		Runtime:  result.Runtime,
		Commit:   event.Commit,
		Branch:   event.Branch,
	}
}
