package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/harrison/stagehand/internal/models"
)

func jobResult(status models.Status) models.JobResult {
	return models.JobResult{
		Job:      models.Job{Name: "test"},
		Entry:    models.MatrixEntry{Name: "runtime=3.9", Values: map[string]string{"runtime": "3.9"}},
		EnvName:  "test-3.9",
		Runtime:  "3.9",
		Status:   status,
		Duration: 90 * time.Second,
	}
}

// TestLogJobStart verifies the job start line format
func TestLogJobStart(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	cl.LogJobStart(models.Job{Name: "test"}, models.MatrixEntry{Name: "runtime=3.8"})

	out := buf.String()
	if !strings.Contains(out, "Starting job test [runtime=3.8]") {
		t.Errorf("output = %q, want job start line", out)
	}
}

// TestLogJobComplete verifies the job completion line includes status and duration
func TestLogJobComplete(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	cl.LogJobComplete(jobResult(models.StatusPassed))

	out := buf.String()
	if !strings.Contains(out, "Job test [runtime=3.9]") {
		t.Errorf("output = %q, want job label", out)
	}
	if !strings.Contains(out, "passed") {
		t.Errorf("output = %q, want status", out)
	}
	if !strings.Contains(out, "1m30s") {
		t.Errorf("output = %q, want duration 1m30s", out)
	}
}

// TestLogStepResultLevelFiltering verifies step results only appear at debug
func TestLogStepResultLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	result := models.StepResult{
		Step:     models.Step{Name: "install", Run: "pip install -e ."},
		Status:   models.StatusPassed,
		Duration: time.Second,
	}
	cl.LogStepResult(result)
	if buf.Len() != 0 {
		t.Errorf("step result logged at info level: %q", buf.String())
	}

	debugLogger := NewConsoleLogger(&buf, "debug")
	debugLogger.LogStepResult(result)
	if !strings.Contains(buf.String(), "Step install: passed") {
		t.Errorf("output = %q, want step line", buf.String())
	}
}

// TestLogSummary verifies summary counts and failed job listing
func TestLogSummary(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")

	result := models.RunResult{
		RunID:     "run-1",
		Workflow:  "unit-test",
		Event:     models.Event{Kind: models.EventPush, Branch: "main"},
		Jobs:      []models.JobResult{jobResult(models.StatusPassed), jobResult(models.StatusFailed)},
		TotalJobs: 2,
		Passed:    1,
		Failed:    1,
		Duration:  5 * time.Minute,
	}
	cl.LogSummary(result)

	out := buf.String()
	for _, want := range []string{
		"=== Run Summary ===",
		"Workflow: unit-test (push on main)",
		"Total jobs: 2",
		"Passed: 1",
		"Failed: 1",
		"Duration: 5m",
		"Failed jobs:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q in:\n%s", want, out)
		}
	}
}

// TestLogLevelFiltering verifies leveled message filtering
func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "warn")

	cl.LogDebug("debug message")
	cl.LogInfo("info message")
	if buf.Len() != 0 {
		t.Errorf("messages below warn were logged: %q", buf.String())
	}

	cl.LogWarn("warn message")
	cl.LogError("error message")
	out := buf.String()
	if !strings.Contains(out, "[WARN] warn message") {
		t.Errorf("output = %q, want warn line", out)
	}
	if !strings.Contains(out, "[ERROR] error message") {
		t.Errorf("output = %q, want error line", out)
	}
}

// TestNilWriter verifies a nil writer discards everything without panicking
func TestNilWriter(t *testing.T) {
	cl := NewConsoleLogger(nil, "trace")

	cl.LogInfo("message")
	cl.LogJobStart(models.Job{Name: "test"}, models.MatrixEntry{})
	cl.LogJobComplete(jobResult(models.StatusPassed))
	cl.LogSummary(models.RunResult{})
	cl.LogStepResult(models.StepResult{})
}

// TestInvalidLevelDefaultsToInfo verifies bad levels fall back to info
func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "shouting")

	cl.LogDebug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug logged under default info level: %q", buf.String())
	}
	cl.LogInfo("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("info message not logged under default level")
	}
}

// TestFormatDuration covers the duration formatting cases
func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m30s"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{time.Hour + time.Minute + time.Second, "1h1m1s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// TestNoOpLogger verifies the no-op implementation is safe to use
func TestNoOpLogger(t *testing.T) {
	n := NewNoOpLogger()
	n.LogJobStart(models.Job{}, models.MatrixEntry{})
	n.LogJobComplete(models.JobResult{})
	n.LogSummary(models.RunResult{})
	n.LogStepResult(models.StepResult{})
}
