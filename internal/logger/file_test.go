package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/stagehand/internal/models"
)

// TestFileLoggerCreatesRunLog verifies run log file and symlink creation
func TestFileLoggerCreatesRunLog(t *testing.T) {
	tmpDir := t.TempDir()

	fl, err := NewFileLoggerWithDirAndLevel(tmpDir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}
	defer fl.Close()

	if _, err := os.Stat(fl.RunFile()); err != nil {
		t.Errorf("run log file missing: %v", err)
	}

	latest := filepath.Join(tmpDir, "latest.log")
	target, err := os.Readlink(latest)
	if err != nil {
		t.Fatalf("latest.log symlink missing: %v", err)
	}
	if target != filepath.Base(fl.RunFile()) {
		t.Errorf("latest.log -> %q, want %q", target, filepath.Base(fl.RunFile()))
	}

	data, err := os.ReadFile(fl.RunFile())
	if err != nil {
		t.Fatalf("failed to read run log: %v", err)
	}
	if !strings.Contains(string(data), "=== Stagehand Run Log ===") {
		t.Errorf("run log missing header: %q", string(data))
	}
}

// TestFileLoggerJobDetail verifies per-job detail logs are written
func TestFileLoggerJobDetail(t *testing.T) {
	tmpDir := t.TempDir()

	fl, err := NewFileLoggerWithDirAndLevel(tmpDir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}
	defer fl.Close()

	result := models.JobResult{
		Job:     models.Job{Name: "test"},
		Entry:   models.MatrixEntry{Name: "runtime=3.8"},
		EnvName: "test-3.8",
		Runtime: "3.8",
		Status:  models.StatusFailed,
		Steps: []models.StepResult{
			{
				Step:     models.Step{Name: "install", Run: "pip install -e ."},
				Status:   models.StatusPassed,
				Output:   "installed ok",
				Duration: 2 * time.Second,
			},
			{
				Step:     models.Step{Name: "test", Run: "pytest tests/"},
				Status:   models.StatusFailed,
				Output:   "1 failed",
				Duration: 30 * time.Second,
			},
		},
		Duration: 32 * time.Second,
	}
	fl.LogJobComplete(result)

	entries, err := os.ReadDir(filepath.Join(tmpDir, "jobs"))
	if err != nil {
		t.Fatalf("failed to list jobs dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("jobs dir has %d entries, want 1", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "jobs", entries[0].Name()))
	if err != nil {
		t.Fatalf("failed to read job log: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"=== Job test [runtime=3.8] ===",
		"Status: failed",
		"Environment: test-3.8 (runtime 3.8)",
		"Step 1: install [passed]",
		"Step 2: test [failed]",
		"1 failed",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("job log missing %q in:\n%s", want, content)
		}
	}
}

// TestFileLoggerSummary verifies summary lines land in the run log
func TestFileLoggerSummary(t *testing.T) {
	tmpDir := t.TempDir()

	fl, err := NewFileLoggerWithDirAndLevel(tmpDir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}

	fl.LogSummary(models.RunResult{
		RunID:     "abc-123",
		Workflow:  "unit-test",
		Event:     models.Event{Kind: models.EventPullRequest},
		TotalJobs: 2,
		Passed:    2,
		Duration:  time.Minute,
	})
	fl.Close()

	data, err := os.ReadFile(fl.RunFile())
	if err != nil {
		t.Fatalf("failed to read run log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "Run ID: abc-123") {
		t.Errorf("summary missing run ID in:\n%s", content)
	}
	if !strings.Contains(content, "Total jobs: 2") {
		t.Errorf("summary missing job count in:\n%s", content)
	}
}

// TestFileLoggerCloseIdempotent verifies Close can be called twice
func TestFileLoggerCloseIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	fl, err := NewFileLoggerWithDirAndLevel(tmpDir, "info")
	if err != nil {
		t.Fatalf("NewFileLoggerWithDirAndLevel() error = %v", err)
	}

	if err := fl.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// TestSanitizeFileName verifies unsafe characters are replaced
func TestSanitizeFileName(t *testing.T) {
	got := sanitizeFileName("test [os=linux, runtime=3.9]")
	if strings.ContainsAny(got, "/\\ ,=[]") {
		t.Errorf("sanitizeFileName() = %q, contains unsafe characters", got)
	}
}
