// Package logger provides logging implementations for stagehand run
// execution.
//
// The logger package offers structured logging of run progress at the job,
// step, and summary levels. Implementations are thread-safe and support
// various output destinations (console, file, etc.).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/stagehand/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run progress to a writer with timestamps and thread
// safety. All output is prefixed with [HH:MM:SS] timestamps. It supports
// log level filtering, and color output is automatically enabled for
// terminal writers.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded.
// logLevel determines the minimum level for output; empty or invalid
// levels default to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		mutex:       sync.Mutex{},
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// NO_COLOR is honored through the color package's NoColor flag.
func isTerminal(w io.Writer) bool {
	if w == nil || color.NoColor {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates
// it. Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[normalized] {
		return normalized
	}

	return "info" // Default level
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel logs a message at the specified level if filtering allows it.
// Format: "[HH:MM:SS] [LEVEL] <message>"
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, colorLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}

	cl.writer.Write([]byte(formatted))
}

// colorLevel applies the conventional color for a log level tag.
func colorLevel(level string) string {
	switch strings.ToUpper(level) {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogJobStart logs the start of a matrix job at INFO level.
// Format: "[HH:MM:SS] Starting job <job> [<entry>]"
func (cl *ConsoleLogger) LogJobStart(job models.Job, entry models.MatrixEntry) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	label := jobLabel(job, entry)

	var message string
	if cl.colorOutput {
		message = fmt.Sprintf("[%s] Starting job %s\n", ts, color.New(color.Bold).Sprint(label))
	} else {
		message = fmt.Sprintf("[%s] Starting job %s\n", ts, label)
	}
	cl.writer.Write([]byte(message))
}

// LogJobComplete logs the completion of a matrix job at INFO level.
// Format: "[HH:MM:SS] Job <job> [<entry>]: <status> (<duration>)"
func (cl *ConsoleLogger) LogJobComplete(result models.JobResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	label := jobLabel(result.Job, result.Entry)
	durationStr := formatDuration(result.Duration)

	var message string
	if cl.colorOutput {
		message = fmt.Sprintf("[%s] Job %s: %s (%s)\n",
			ts, color.New(color.Bold).Sprint(label), colorStatus(result.Status), durationStr)
	} else {
		message = fmt.Sprintf("[%s] Job %s: %s (%s)\n", ts, label, result.Status, durationStr)
	}
	cl.writer.Write([]byte(message))
}

// LogStepResult logs the completion of a step at DEBUG level.
// Format: "[HH:MM:SS] Step <name>: <status> (<duration>)"
func (cl *ConsoleLogger) LogStepResult(result models.StepResult) {
	if cl.writer == nil || !cl.shouldLog("debug") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	name := result.Step.Name
	if name == "" {
		name = result.Step.Run
	}

	var message string
	if cl.colorOutput {
		message = fmt.Sprintf("[%s] Step %s: %s (%s)\n",
			ts, name, colorStatus(result.Status), formatDuration(result.Duration))
	} else {
		message = fmt.Sprintf("[%s] Step %s: %s (%s)\n",
			ts, name, result.Status, formatDuration(result.Duration))
	}

	cl.writer.Write([]byte(message))
}

// LogSummary logs the run summary with completion statistics at INFO level.
func (cl *ConsoleLogger) LogSummary(result models.RunResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	durationStr := formatDuration(result.Duration)

	var output string
	if cl.colorOutput {
		header := color.New(color.Bold).Sprint("=== Run Summary ===")
		output = fmt.Sprintf("[%s] %s\n", ts, header)
		output += fmt.Sprintf("[%s] Workflow: %s (%s)\n", ts, result.Workflow, result.Event)
		output += fmt.Sprintf("[%s] Total jobs: %d\n", ts, result.TotalJobs)
		output += fmt.Sprintf("[%s] %s\n", ts, color.New(color.FgGreen).Sprintf("Passed: %d", result.Passed))
		if result.Failed > 0 {
			output += fmt.Sprintf("[%s] %s\n", ts, color.New(color.FgRed).Sprintf("Failed: %d", result.Failed))
		} else {
			output += fmt.Sprintf("[%s] Failed: %d\n", ts, result.Failed)
		}
		output += fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr)

		if failed := result.FailedJobs(); len(failed) > 0 {
			output += fmt.Sprintf("[%s] %s\n", ts, color.New(color.FgRed).Sprint("Failed jobs:"))
			for _, job := range failed {
				label := color.New(color.FgRed).Sprint(jobLabel(job.Job, job.Entry))
				output += fmt.Sprintf("[%s]   - %s: %s\n", ts, label, job.Status)
			}
		}
	} else {
		output = fmt.Sprintf("[%s] === Run Summary ===\n", ts)
		output += fmt.Sprintf("[%s] Workflow: %s (%s)\n", ts, result.Workflow, result.Event)
		output += fmt.Sprintf("[%s] Total jobs: %d\n", ts, result.TotalJobs)
		output += fmt.Sprintf("[%s] Passed: %d\n", ts, result.Passed)
		output += fmt.Sprintf("[%s] Failed: %d\n", ts, result.Failed)
		output += fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr)

		if failed := result.FailedJobs(); len(failed) > 0 {
			output += fmt.Sprintf("[%s] Failed jobs:\n", ts)
			for _, job := range failed {
				output += fmt.Sprintf("[%s]   - %s: %s\n", ts, jobLabel(job.Job, job.Entry), job.Status)
			}
		}
	}

	cl.writer.Write([]byte(output))
}

// colorStatus applies the conventional color for a job/step status.
func colorStatus(status models.Status) string {
	switch status {
	case models.StatusPassed:
		return color.New(color.FgGreen).Sprint(strings.ToUpper(string(status)))
	case models.StatusFailed, models.StatusCancelled:
		return color.New(color.FgRed).Sprint(strings.ToUpper(string(status)))
	case models.StatusSkipped:
		return color.New(color.FgYellow).Sprint(strings.ToUpper(string(status)))
	default:
		return string(status)
	}
}

// jobLabel builds the display label for a job and its matrix entry.
func jobLabel(job models.Job, entry models.MatrixEntry) string {
	if entry.Name == "" {
		return job.Name
	}
	return fmt.Sprintf("%s [%s]", job.Name, entry.Name)
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		seconds := remainder / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogJobStart is a no-op implementation.
func (n *NoOpLogger) LogJobStart(job models.Job, entry models.MatrixEntry) {
}

// LogJobComplete is a no-op implementation.
func (n *NoOpLogger) LogJobComplete(result models.JobResult) {
}

// LogStepResult is a no-op implementation.
func (n *NoOpLogger) LogStepResult(result models.StepResult) {
}

// LogSummary is a no-op implementation.
func (n *NoOpLogger) LogSummary(result models.RunResult) {
}
