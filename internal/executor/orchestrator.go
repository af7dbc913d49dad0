package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/stagehand/internal/matrix"
	"github.com/harrison/stagehand/internal/models"
	"github.com/harrison/stagehand/internal/parser"
)

// Logger defines the interface for logging run progress and results.
type Logger interface {
	LogJobStart(job models.Job, entry models.MatrixEntry)
	LogJobComplete(result models.JobResult)
	LogStepResult(result models.StepResult)
	LogSummary(result models.RunResult)
}

// JobRunner defines the behavior required to execute individual matrix
// entries within a run.
type JobRunner interface {
	Execute(ctx context.Context, req JobRequest) models.JobResult
}

// Orchestrator coordinates workflow run execution: it expands each job's
// matrix into independent entries and executes them in parallel with
// bounded concurrency.
type Orchestrator struct {
	jobs           JobRunner
	logger         Logger
	maxConcurrency int
	entryFilter    func(models.MatrixEntry) bool
}

// NewOrchestrator creates an Orchestrator. The logger parameter is
// optional and can be nil to disable logging. maxConcurrency bounds
// simultaneous matrix jobs; zero or negative means unlimited.
func NewOrchestrator(jobs JobRunner, logger Logger, maxConcurrency int) *Orchestrator {
	if jobs == nil {
		panic("job runner cannot be nil")
	}
	return &Orchestrator{
		jobs:           jobs,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// SetEntryFilter restricts execution to matrix entries the filter accepts.
// Entries the filter rejects are not scheduled and not reported. A nil
// filter (the default) accepts every entry.
func (o *Orchestrator) SetEntryFilter(filter func(models.MatrixEntry) bool) {
	o.entryFilter = filter
}

// jobUnit is one matrix entry scheduled for execution
type jobUnit struct {
	index    int
	job      models.Job // Matrix placeholders already resolved
	entry    models.MatrixEntry
	failFast bool
}

// ExecuteRun runs every matrix entry of every job in the workflow for the
// given event, and returns the aggregated run result.
//
// Entries are isolated: one entry's failure never prevents another from
// being reported. Jobs whose strategy sets fail-fast cancel that job's
// remaining entries on first failure; other jobs are unaffected.
func (o *Orchestrator) ExecuteRun(ctx context.Context, workflow *models.Workflow, event models.Event) (*models.RunResult, error) {
	if workflow == nil {
		return nil, fmt.Errorf("workflow cannot be nil")
	}

	runID := uuid.NewString()
	start := time.Now()

	units, err := o.expandUnits(workflow)
	if err != nil {
		return nil, err
	}

	results := o.executeUnits(ctx, runID, workflow, event, units)

	runResult := &models.RunResult{
		RunID:     runID,
		Workflow:  workflow.Name,
		Event:     event,
		Jobs:      results,
		TotalJobs: len(results),
		StartedAt: start,
		Duration:  time.Since(start),
	}
	for _, job := range results {
		if job.Failed() {
			runResult.Failed++
		} else {
			runResult.Passed++
		}
	}

	if o.logger != nil {
		o.logger.LogSummary(*runResult)
	}

	return runResult, nil
}

// expandUnits expands every job's matrix and resolves placeholders,
// producing the flat list of executable units in deterministic order.
func (o *Orchestrator) expandUnits(workflow *models.Workflow) ([]jobUnit, error) {
	var units []jobUnit
	for _, job := range workflow.Jobs {
		entries := matrix.Expand(job.Strategy)
		for _, entry := range entries {
			if o.entryFilter != nil && !o.entryFilter(entry) {
				continue
			}
			expanded, err := parser.ExpandJob(job, entry)
			if err != nil {
				return nil, fmt.Errorf("job %q entry %q: %w", job.Name, entry.Name, err)
			}
			units = append(units, jobUnit{
				index:    len(units),
				job:      expanded,
				entry:    entry,
				failFast: job.Strategy.FailFast,
			})
		}
	}
	return units, nil
}

// executeUnits runs the units in parallel under the concurrency bound
func (o *Orchestrator) executeUnits(ctx context.Context, runID string, workflow *models.Workflow, event models.Event, units []jobUnit) []models.JobResult {
	if len(units) == 0 {
		return nil
	}

	maxConcurrency := o.maxConcurrency
	if maxConcurrency <= 0 || maxConcurrency > len(units) {
		maxConcurrency = len(units)
	}

	// Fail-fast jobs share a cancellable context per job name, so one
	// entry's failure cancels only its siblings.
	jobContexts := make(map[string]context.Context)
	jobCancels := make(map[string]context.CancelFunc)
	for _, unit := range units {
		if unit.failFast {
			if _, ok := jobContexts[unit.job.Name]; !ok {
				jobCtx, cancel := context.WithCancel(ctx)
				jobContexts[unit.job.Name] = jobCtx
				jobCancels[unit.job.Name] = cancel
			}
		}
	}
	defer func() {
		for _, cancel := range jobCancels {
			cancel()
		}
	}()

	semaphore := make(chan struct{}, maxConcurrency)
	results := make([]models.JobResult, len(units))

	var wg sync.WaitGroup
	for _, unit := range units {
		select {
		case <-ctx.Done():
			// Remaining units are recorded as cancelled, never dropped
			results[unit.index] = models.JobResult{
				Job:    unit.job,
				Entry:  unit.entry,
				Status: models.StatusCancelled,
				Error:  ctx.Err(),
			}
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(unit jobUnit) {
			defer wg.Done()
			defer func() { <-semaphore }()

			unitCtx := ctx
			if unit.failFast {
				unitCtx = jobContexts[unit.job.Name]
			}

			if o.logger != nil {
				o.logger.LogJobStart(unit.job, unit.entry)
			}

			result := o.jobs.Execute(unitCtx, JobRequest{
				RunID:    runID,
				Workflow: workflow.Name,
				Event:    event,
				Job:      unit.job,
				Entry:    unit.entry,
				Extra:    mergedEnv(workflow.Env, unit.job.Env),
			})
			results[unit.index] = result

			if o.logger != nil {
				for _, step := range result.Steps {
					o.logger.LogStepResult(step)
				}
				o.logger.LogJobComplete(result)
			}

			if result.Failed() && unit.failFast {
				jobCancels[unit.job.Name]()
			}
		}(unit)
	}

	wg.Wait()
	return results
}

// mergedEnv concatenates workflow-level and job-level env declarations.
// Job-level entries come last so they take precedence.
func mergedEnv(workflowEnv, jobEnv []models.EnvVar) []models.EnvVar {
	if len(workflowEnv) == 0 {
		return jobEnv
	}
	merged := make([]models.EnvVar, 0, len(workflowEnv)+len(jobEnv))
	merged = append(merged, workflowEnv...)
	merged = append(merged, jobEnv...)
	return merged
}
