package cmd

import (
	"testing"

	"github.com/harrison/stagehand/internal/models"
)

// recordingLogger counts calls per Logger method
type recordingLogger struct {
	jobStarts    int
	jobCompletes int
	stepResults  int
	summaries    int
}

func (r *recordingLogger) LogJobStart(job models.Job, entry models.MatrixEntry) {
	r.jobStarts++
}

func (r *recordingLogger) LogJobComplete(result models.JobResult) {
	r.jobCompletes++
}

func (r *recordingLogger) LogStepResult(result models.StepResult) {
	r.stepResults++
}

func (r *recordingLogger) LogSummary(result models.RunResult) {
	r.summaries++
}

// TestMultiLoggerFansOut verifies every logger receives every event
func TestMultiLoggerFansOut(t *testing.T) {
	first := &recordingLogger{}
	second := &recordingLogger{}
	m := newMultiLogger(first, second)

	m.LogJobStart(models.Job{Name: "test"}, models.MatrixEntry{})
	m.LogStepResult(models.StepResult{})
	m.LogStepResult(models.StepResult{})
	m.LogJobComplete(models.JobResult{})
	m.LogSummary(models.RunResult{})

	for i, l := range []*recordingLogger{first, second} {
		if l.jobStarts != 1 || l.jobCompletes != 1 || l.stepResults != 2 || l.summaries != 1 {
			t.Errorf("logger %d counts = %+v, want 1/1/2/1", i, *l)
		}
	}
}
