package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/harrison/stagehand/internal/coverage"
	"github.com/harrison/stagehand/internal/envprov"
	"github.com/harrison/stagehand/internal/models"
	"github.com/harrison/stagehand/internal/upload"
)

// JobRequest bundles everything needed to execute one matrix entry's job.
// The job must already have its matrix placeholders resolved.
type JobRequest struct {
	RunID    string
	Workflow string
	Event    models.Event
	Job      models.Job
	Entry    models.MatrixEntry
	Extra    []models.EnvVar // Workflow-level env merged with job-level env
}

// JobExecutor executes a single job: it provisions the entry's isolated
// environment, runs the step sequence linearly, and collects the coverage
// artifact.
type JobExecutor struct {
	steps       *StepExecutor
	provisioner *envprov.Provisioner
	projectDir  string
}

// NewJobExecutor creates a JobExecutor.
func NewJobExecutor(steps *StepExecutor, provisioner *envprov.Provisioner, projectDir string) *JobExecutor {
	return &JobExecutor{
		steps:       steps,
		provisioner: provisioner,
		projectDir:  projectDir,
	}
}

// Execute runs the job for one matrix entry and returns its result.
//
// Steps run in declaration order. Once a step fails, later steps are
// skipped unless marked always; a continue-on-error step records its
// failure without failing the job. The job fails on the first
// non-tolerated step failure, but always steps still run after it.
func (je *JobExecutor) Execute(ctx context.Context, req JobRequest) models.JobResult {
	start := time.Now()
	label := jobLabel(req.Job, req.Entry)

	result := models.JobResult{
		Job:     req.Job,
		Entry:   req.Entry,
		Runtime: req.Job.Runtime,
		Status:  models.StatusRunning,
	}

	env, err := je.provisioner.Provision(req.RunID, req.Job, req.Entry, req.Extra)
	if err != nil {
		result.Status = models.StatusFailed
		result.Error = NewJobError(label, PhaseProvision, "failed to provision environment", err)
		result.Duration = time.Since(start)
		return result
	}
	defer je.provisioner.Cleanup(env)

	result.EnvName = env.Name

	sc := StepContext{
		ProjectDir:   je.projectDir,
		Env:          env.Env,
		Meta:         upload.ReportFromResult(req.RunID, req.Workflow, req.Event, result),
		CoveragePath: req.Job.Coverage,
	}

	var failed bool
	for _, step := range req.Job.Steps {
		if ctx.Err() != nil {
			result.Steps = append(result.Steps, models.StepResult{
				Step:   step,
				Status: models.StatusCancelled,
				Error:  ctx.Err(),
			})
			failed = true
			if result.Error == nil {
				result.Error = NewJobError(label, PhaseStep, "execution cancelled", ctx.Err())
			}
			continue
		}

		if failed && !step.Always {
			result.Steps = append(result.Steps, models.StepResult{
				Step:   step,
				Status: models.StatusSkipped,
			})
			continue
		}

		stepResult := je.steps.Execute(ctx, step, sc)
		result.Steps = append(result.Steps, stepResult)

		if stepResult.Error != nil && !step.ContinueOnError {
			failed = true
			if result.Error == nil {
				name := step.Name
				if name == "" {
					name = step.Run
				}
				result.Error = NewJobError(label, PhaseStep,
					fmt.Sprintf("step %q failed", name), stepResult.Error)
			}
		}
	}

	je.collectCoverage(&result, &failed, label)

	result.Duration = time.Since(start)
	if failed {
		result.Status = models.StatusFailed
		if ctx.Err() != nil {
			result.Status = models.StatusCancelled
		}
	} else {
		result.Status = models.StatusPassed
	}
	return result
}

// collectCoverage parses the job's declared coverage artifact.
// A declared artifact that is missing or unparsable after a clean run is a
// misconfiguration and fails the job; after a failed run it is expected
// and ignored.
func (je *JobExecutor) collectCoverage(result *models.JobResult, failed *bool, label string) {
	if result.Job.Coverage == "" {
		return
	}

	path := result.Job.Coverage
	if !filepath.IsAbs(path) {
		path = filepath.Join(je.projectDir, path)
	}

	report, err := coverage.ParseFile(path)
	if err != nil {
		if !*failed {
			*failed = true
			result.Error = NewJobError(label, PhaseCoverage, "declared coverage report unusable", err)
		}
		return
	}
	result.Coverage = report
}

// jobLabel builds the display label for a job and its matrix entry.
func jobLabel(job models.Job, entry models.MatrixEntry) string {
	if entry.Name == "" {
		return job.Name
	}
	return fmt.Sprintf("%s [%s]", job.Name, entry.Name)
}
