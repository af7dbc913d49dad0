package executor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrStepFailed indicates a step command exited with non-zero status.
var ErrStepFailed = errors.New("step failed")

// ErrUnknownBuiltin indicates a step referenced an unknown builtin via uses.
var ErrUnknownBuiltin = errors.New("unknown builtin step")

// ExecutionPhase represents the phase of execution where an error occurred.
type ExecutionPhase int

const (
	// PhaseProvision represents errors during environment provisioning.
	PhaseProvision ExecutionPhase = iota
	// PhaseStep represents errors during step execution.
	PhaseStep
	// PhaseCoverage represents errors while handling the coverage artifact.
	PhaseCoverage
	// PhaseUpload represents errors during report upload.
	PhaseUpload
)

// String returns the string representation of ExecutionPhase.
func (p ExecutionPhase) String() string {
	switch p {
	case PhaseProvision:
		return "provision"
	case PhaseStep:
		return "step"
	case PhaseCoverage:
		return "coverage"
	case PhaseUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// JobError represents an error that occurred during job execution.
// It includes context about which job and phase failed and when.
type JobError struct {
	JobName   string         // Job and matrix entry label that failed
	Phase     ExecutionPhase // Phase of execution where the error occurred
	Message   string         // Human-readable error message
	Err       error          // Underlying error (optional)
	Timestamp time.Time      // When the error occurred
}

// NewJobError creates a new JobError with the current timestamp.
func NewJobError(name string, phase ExecutionPhase, msg string, err error) *JobError {
	return &JobError{
		JobName:   name,
		Phase:     phase,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for JobError.
func (e *JobError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("job %s [%s]: %s", e.JobName, e.Phase, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *JobError) Unwrap() error {
	return e.Err
}
