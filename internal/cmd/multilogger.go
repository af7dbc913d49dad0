package cmd

import (
	"github.com/harrison/stagehand/internal/executor"
	"github.com/harrison/stagehand/internal/models"
)

// multiLogger fans run progress out to several loggers, typically the
// console and the per-run log files.
type multiLogger struct {
	loggers []executor.Logger
}

func newMultiLogger(loggers ...executor.Logger) *multiLogger {
	return &multiLogger{loggers: loggers}
}

func (m *multiLogger) LogJobStart(job models.Job, entry models.MatrixEntry) {
	for _, l := range m.loggers {
		l.LogJobStart(job, entry)
	}
}

func (m *multiLogger) LogJobComplete(result models.JobResult) {
	for _, l := range m.loggers {
		l.LogJobComplete(result)
	}
}

func (m *multiLogger) LogStepResult(result models.StepResult) {
	for _, l := range m.loggers {
		l.LogStepResult(result)
	}
}

func (m *multiLogger) LogSummary(result models.RunResult) {
	for _, l := range m.loggers {
		l.LogSummary(result)
	}
}
