package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/harrison/stagehand/internal/models"
	"github.com/harrison/stagehand/internal/upload"
)

// Builtin step names accepted in a step's uses field.
const (
	// BuiltinCoverageUpload uploads the job's coverage report to the
	// configured coverage service.
	BuiltinCoverageUpload = "coverage-upload"
)

// CoverageUploader abstracts the coverage upload integration so tests can
// substitute a fake.
type CoverageUploader interface {
	Upload(ctx context.Context, reportPath string, meta upload.Metadata) error
}

// StepContext carries the per-job state a step executes against.
type StepContext struct {
	ProjectDir   string          // Default working directory for run steps
	Env          []string        // Environment variable set for the job
	Meta         upload.Metadata // Run metadata for builtin integrations
	CoveragePath string          // Default coverage report path for uploads
}

// StepExecutor executes individual steps, dispatching between shell
// commands and builtin integrations.
type StepExecutor struct {
	runner   CommandRunner
	uploader CoverageUploader
}

// NewStepExecutor creates a StepExecutor. uploader may be nil when no
// coverage service is configured; coverage-upload steps then fail with a
// configuration error.
func NewStepExecutor(runner CommandRunner, uploader CoverageUploader) *StepExecutor {
	return &StepExecutor{runner: runner, uploader: uploader}
}

// Execute runs one step and returns its result. The returned error mirrors
// result.Error; callers decide how it affects the job based on the step's
// continue-on-error setting.
func (se *StepExecutor) Execute(ctx context.Context, step models.Step, sc StepContext) models.StepResult {
	start := time.Now()

	var output string
	var err error
	if step.Uses != "" {
		output, err = se.executeBuiltin(ctx, step, sc)
	} else {
		output, err = se.executeRun(ctx, step, sc)
	}

	result := models.StepResult{
		Step:     step,
		Output:   output,
		Error:    err,
		Duration: time.Since(start),
	}
	if err != nil {
		result.Status = models.StatusFailed
		if ctx.Err() != nil {
			result.Status = models.StatusCancelled
		}
	} else {
		result.Status = models.StatusPassed
	}
	return result
}

// executeRun runs a shell command step
func (se *StepExecutor) executeRun(ctx context.Context, step models.Step, sc StepContext) (string, error) {
	dir := sc.ProjectDir
	if step.WorkDir != "" {
		dir = step.WorkDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(sc.ProjectDir, dir)
		}
	}

	env := sc.Env
	if len(step.Env) > 0 {
		// Step env entries are appended last so they take precedence
		env = make([]string, 0, len(sc.Env)+len(step.Env))
		env = append(env, sc.Env...)
		for _, v := range step.Env {
			env = append(env, fmt.Sprintf("%s=%s", v.Name, v.Value))
		}
	}

	return se.runner.Run(ctx, step.Run, dir, env)
}

// executeBuiltin dispatches a uses step to its builtin implementation
func (se *StepExecutor) executeBuiltin(ctx context.Context, step models.Step, sc StepContext) (string, error) {
	switch step.Uses {
	case BuiltinCoverageUpload:
		return se.executeCoverageUpload(ctx, step, sc)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBuiltin, step.Uses)
	}
}

// executeCoverageUpload uploads the job's coverage report
func (se *StepExecutor) executeCoverageUpload(ctx context.Context, step models.Step, sc StepContext) (string, error) {
	if se.uploader == nil {
		return "", fmt.Errorf("coverage-upload step requires upload.url in configuration")
	}

	reportPath := step.With["file"]
	if reportPath == "" {
		reportPath = sc.CoveragePath
	}
	if reportPath == "" {
		return "", fmt.Errorf("coverage-upload step has no report file: set with.file or the job's coverage field")
	}
	if !filepath.IsAbs(reportPath) {
		reportPath = filepath.Join(sc.ProjectDir, reportPath)
	}

	if err := se.uploader.Upload(ctx, reportPath, sc.Meta); err != nil {
		return "", fmt.Errorf("coverage upload failed: %w", err)
	}
	return fmt.Sprintf("uploaded %s", reportPath), nil
}
