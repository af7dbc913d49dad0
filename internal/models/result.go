package models

import "time"

// Status represents the outcome of a step, job, or run
type Status string

// Status values
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// StepResult captures the outcome of executing a single step
type StepResult struct {
	Step     Step          // The step that was executed
	Status   Status        // Outcome
	Output   string        // Combined stdout/stderr
	Error    error         // Execution error, nil on success
	Duration time.Duration // Wall-clock execution time
}

// JobResult captures the outcome of one matrix entry's job execution
type JobResult struct {
	Job      Job             // The job definition
	Entry    MatrixEntry     // The matrix entry this execution bound
	EnvName  string          // Resolved environment name
	Runtime  string          // Resolved runtime version
	Status   Status          // Outcome
	Steps    []StepResult    // Per-step results in execution order
	Coverage *CoverageReport // Parsed coverage report, nil if none produced
	Error    error           // First fatal error, nil on success
	Duration time.Duration   // Wall-clock execution time
}

// Failed reports whether the job ended in a failure state
func (r *JobResult) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusCancelled
}

// RunResult aggregates all job results for one workflow run
type RunResult struct {
	RunID      string        // Unique run identifier
	Workflow   string        // Workflow name
	Event      Event         // Triggering event
	Jobs       []JobResult   // One result per matrix entry
	TotalJobs  int           // Number of matrix entries executed
	Passed     int           // Jobs that passed
	Failed     int           // Jobs that failed or were cancelled
	StartedAt  time.Time     // Run start timestamp
	Duration   time.Duration // Total wall-clock duration
}

// Status derives the overall run status from its job results
func (r *RunResult) Status() Status {
	if r.Failed > 0 {
		return StatusFailed
	}
	if r.Passed == r.TotalJobs && r.TotalJobs > 0 {
		return StatusPassed
	}
	return StatusSkipped
}

// FailedJobs returns the subset of job results that failed
func (r *RunResult) FailedJobs() []JobResult {
	var failed []JobResult
	for _, job := range r.Jobs {
		if job.Failed() {
			failed = append(failed, job)
		}
	}
	return failed
}
