package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/stagehand/internal/models"
)

// FileLogger logs run events to files in the log directory. It creates a
// timestamped per-run log file, per-job detail logs, and maintains a
// latest.log symlink pointing to the most recent run. It is thread-safe
// and implements the executor.Logger interface.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	jobsDir  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .stagehand/logs/ with the
// default "info" level.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".stagehand", "logs"), "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log
// directory and log level. Useful for testing or custom deployments.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	jobsDir := filepath.Join(logDir, "jobs")
	if err := os.MkdirAll(jobsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create jobs directory: %w", err)
	}

	// Timestamped filename: run-YYYYMMDD-HHMMSS.log
	timestamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", timestamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	// Point latest.log at the current run log
	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		jobsDir:  jobsDir,
		logLevel: normalizeLogLevel(logLevel),
		mu:       sync.Mutex{},
	}

	logger.writeRunLog("=== Stagehand Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return logger, nil
}

// writeRunLog appends a line to the run log under the mutex
func (fl *FileLogger) writeRunLog(line string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog != nil {
		fl.runLog.WriteString(line)
	}
}

// shouldLog checks if a message at the given level should be logged.
func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// RunFile returns the path of the current run log file.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// LogJobStart records the start of a matrix job.
func (fl *FileLogger) LogJobStart(job models.Job, entry models.MatrixEntry) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Starting job %s\n", timestamp(), jobLabel(job, entry)))
}

// LogJobComplete records the completion of a matrix job and writes the
// job's detailed step output to a per-job log file.
func (fl *FileLogger) LogJobComplete(result models.JobResult) {
	if fl.shouldLog("info") {
		fl.writeRunLog(fmt.Sprintf("[%s] Job %s: %s (%s)\n",
			timestamp(), jobLabel(result.Job, result.Entry), result.Status, formatDuration(result.Duration)))
	}

	// Per-job detail log is written regardless of level: it is the place
	// to look when a job fails.
	if err := fl.writeJobDetail(result); err != nil {
		fl.writeRunLog(fmt.Sprintf("[%s] WARN failed to write job detail log: %v\n", timestamp(), err))
	}
}

// writeJobDetail writes the full step-by-step record for a job
func (fl *FileLogger) writeJobDetail(result models.JobResult) error {
	name := sanitizeFileName(jobLabel(result.Job, result.Entry))
	path := filepath.Join(fl.jobsDir, name+".log")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== Job %s ===\n", jobLabel(result.Job, result.Entry)))
	sb.WriteString(fmt.Sprintf("Status: %s\n", result.Status))
	sb.WriteString(fmt.Sprintf("Environment: %s (runtime %s)\n", result.EnvName, result.Runtime))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", formatDuration(result.Duration)))
	if result.Coverage != nil {
		sb.WriteString(fmt.Sprintf("Coverage: %s\n", result.Coverage.Summary()))
	}
	if result.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %v\n", result.Error))
	}
	sb.WriteString("\n")

	for i, step := range result.Steps {
		name := step.Step.Name
		if name == "" {
			name = step.Step.Run
		}
		sb.WriteString(fmt.Sprintf("--- Step %d: %s [%s] (%s) ---\n",
			i+1, name, step.Status, formatDuration(step.Duration)))
		if step.Output != "" {
			sb.WriteString(strings.TrimRight(step.Output, "\n"))
			sb.WriteString("\n")
		}
		if step.Error != nil {
			sb.WriteString(fmt.Sprintf("Error: %v\n", step.Error))
		}
		sb.WriteString("\n")
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create job log: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write job log: %w", err)
	}
	return nil
}

// LogStepResult records a step outcome in the run log at DEBUG level.
func (fl *FileLogger) LogStepResult(result models.StepResult) {
	if !fl.shouldLog("debug") {
		return
	}
	name := result.Step.Name
	if name == "" {
		name = result.Step.Run
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Step %s: %s (%s)\n",
		timestamp(), name, result.Status, formatDuration(result.Duration)))
}

// LogSummary records the run summary.
func (fl *FileLogger) LogSummary(result models.RunResult) {
	if !fl.shouldLog("info") {
		return
	}

	var sb strings.Builder
	ts := timestamp()
	sb.WriteString(fmt.Sprintf("\n[%s] === Run Summary ===\n", ts))
	sb.WriteString(fmt.Sprintf("[%s] Run ID: %s\n", ts, result.RunID))
	sb.WriteString(fmt.Sprintf("[%s] Workflow: %s (%s)\n", ts, result.Workflow, result.Event))
	sb.WriteString(fmt.Sprintf("[%s] Total jobs: %d\n", ts, result.TotalJobs))
	sb.WriteString(fmt.Sprintf("[%s] Passed: %d\n", ts, result.Passed))
	sb.WriteString(fmt.Sprintf("[%s] Failed: %d\n", ts, result.Failed))
	sb.WriteString(fmt.Sprintf("[%s] Duration: %s\n", ts, formatDuration(result.Duration)))

	for _, job := range result.FailedJobs() {
		sb.WriteString(fmt.Sprintf("[%s]   - %s: %s\n", ts, jobLabel(job.Job, job.Entry), job.Status))
	}

	fl.writeRunLog(sb.String())
}

// Close closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return nil
	}
	err := fl.runLog.Close()
	fl.runLog = nil
	if err != nil {
		return fmt.Errorf("failed to close run log: %w", err)
	}
	return nil
}

// sanitizeFileName replaces characters that are unsafe in file names
func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		" ", "_",
		",", "",
		"=", "-",
		"[", "",
		"]", "",
	)
	return replacer.Replace(name)
}
