package models

import (
	"errors"
	"fmt"
)

// Workflow represents a parsed CI workflow definition
type Workflow struct {
	Name     string   // Workflow name (defaults to file basename if empty)
	On       Trigger  // Trigger conditions for this workflow
	Jobs     []Job    // Jobs to execute, in declaration order
	FilePath string   // Source file this workflow was loaded from
	Env      []EnvVar // Workflow-level environment variables
}

// Trigger describes the version-control events that activate a workflow
type Trigger struct {
	// Push holds the push trigger configuration, nil if push events
	// do not activate the workflow
	Push *PushTrigger

	// PullRequest is non-nil when any pull-request event activates
	// the workflow
	PullRequest *PullRequestTrigger
}

// PushTrigger restricts push activation to a set of branches
type PushTrigger struct {
	Branches []string // Branch names that activate the workflow
}

// PullRequestTrigger activates the workflow on any pull-request event.
// It carries no fields: all pull-request events match.
type PullRequestTrigger struct{}

// Job is a named, linear sequence of steps executed once per matrix entry
type Job struct {
	Name     string   // Job identifier
	EnvName  string   // Environment name template (may reference matrix axes)
	Runtime  string   // Runtime version template (may reference matrix axes)
	Strategy Strategy // Matrix strategy for this job
	Steps    []Step   // Linear step sequence
	Coverage string   // Path to the coverage report the job produces (optional)
	Env      []EnvVar // Job-level environment variables
}

// Strategy controls matrix expansion and failure propagation for a job
type Strategy struct {
	// Matrix maps axis names to their enumerated values.
	// An empty matrix expands to a single entry.
	Matrix map[string][]string

	// Include adds explicit entries beyond the cartesian product
	Include []map[string]string

	// Exclude removes matching entries from the cartesian product
	Exclude []map[string]string

	// FailFast cancels remaining entries when one fails.
	// Default false: entries are isolated and all run to completion.
	FailFast bool
}

// Step is a single unit of work within a job
type Step struct {
	Name string // Display name

	// Run is a shell command to execute. Exactly one of Run and Uses
	// must be set.
	Run string

	// Uses names a builtin step implementation (e.g. "coverage-upload")
	Uses string

	// With carries parameters for builtin steps
	With map[string]string

	// Env holds step-scoped environment variables
	Env []EnvVar

	// WorkDir overrides the working directory for this step
	WorkDir string

	// Always runs the step even when an earlier step in the job failed
	Always bool

	// ContinueOnError records a failure without failing the job
	ContinueOnError bool
}

// EnvVar is a single environment variable assignment
type EnvVar struct {
	Name  string
	Value string
}

// MatrixEntry is one expanded combination of matrix axis values
type MatrixEntry struct {
	Name   string            // Deterministic display name, e.g. "runtime=3.9"
	Values map[string]string // Axis name -> selected value
}

// Validate checks that the workflow is structurally sound
func (w *Workflow) Validate() error {
	if len(w.Jobs) == 0 {
		return errors.New("workflow has no jobs")
	}
	if w.On.Push == nil && w.On.PullRequest == nil {
		return errors.New("workflow has no triggers")
	}
	if w.On.Push != nil && len(w.On.Push.Branches) == 0 {
		return errors.New("push trigger requires at least one branch")
	}
	seen := make(map[string]bool, len(w.Jobs))
	for i := range w.Jobs {
		job := &w.Jobs[i]
		if err := job.Validate(); err != nil {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}
		if seen[job.Name] {
			return fmt.Errorf("duplicate job name %q", job.Name)
		}
		seen[job.Name] = true
	}
	return nil
}

// Validate checks that the job has a name and a usable step sequence
func (j *Job) Validate() error {
	if j.Name == "" {
		return errors.New("job name is required")
	}
	if len(j.Steps) == 0 {
		return errors.New("job has no steps")
	}
	for i := range j.Steps {
		if err := j.Steps[i].Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Validate checks that the step declares exactly one of run/uses
func (s *Step) Validate() error {
	if s.Run == "" && s.Uses == "" {
		return errors.New("step requires either run or uses")
	}
	if s.Run != "" && s.Uses != "" {
		return errors.New("step cannot set both run and uses")
	}
	return nil
}
