package models

import (
	"strings"
	"testing"
)

func validWorkflow() *Workflow {
	return &Workflow{
		Name: "unit-test",
		On: Trigger{
			Push:        &PushTrigger{Branches: []string{"main"}},
			PullRequest: &PullRequestTrigger{},
		},
		Jobs: []Job{
			{
				Name: "test",
				Steps: []Step{
					{Name: "install", Run: "pip install -e .[dev]"},
					{Name: "test", Run: "pytest --cov=. tests/"},
				},
			},
		},
	}
}

// TestWorkflowValidate verifies a well-formed workflow passes validation
func TestWorkflowValidate(t *testing.T) {
	wf := validWorkflow()
	if err := wf.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

// TestWorkflowValidateNoJobs verifies workflows without jobs are rejected
func TestWorkflowValidateNoJobs(t *testing.T) {
	wf := validWorkflow()
	wf.Jobs = nil
	if err := wf.Validate(); err == nil {
		t.Error("Validate() = nil, want error for workflow with no jobs")
	}
}

// TestWorkflowValidateNoTriggers verifies workflows without triggers are rejected
func TestWorkflowValidateNoTriggers(t *testing.T) {
	wf := validWorkflow()
	wf.On = Trigger{}
	if err := wf.Validate(); err == nil {
		t.Error("Validate() = nil, want error for workflow with no triggers")
	}
}

// TestWorkflowValidatePushWithoutBranches verifies a push trigger requires branches
func TestWorkflowValidatePushWithoutBranches(t *testing.T) {
	wf := validWorkflow()
	wf.On.Push = &PushTrigger{}
	if err := wf.Validate(); err == nil {
		t.Error("Validate() = nil, want error for push trigger without branches")
	}
}

// TestWorkflowValidateDuplicateJobNames verifies duplicate job names are rejected
func TestWorkflowValidateDuplicateJobNames(t *testing.T) {
	wf := validWorkflow()
	wf.Jobs = append(wf.Jobs, wf.Jobs[0])
	err := wf.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error for duplicate job names")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Validate() error = %v, want mention of duplicate", err)
	}
}

// TestStepValidate covers the run/uses exclusivity rules
func TestStepValidate(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr bool
	}{
		{"run only", Step{Run: "echo ok"}, false},
		{"uses only", Step{Uses: "coverage-upload"}, false},
		{"neither", Step{Name: "empty"}, true},
		{"both", Step{Run: "echo", Uses: "coverage-upload"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestEventValidate covers event kind and branch requirements
func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"push with branch", Event{Kind: EventPush, Branch: "main"}, false},
		{"push without branch", Event{Kind: EventPush}, true},
		{"pull request", Event{Kind: EventPullRequest}, false},
		{"pull request with branch", Event{Kind: EventPullRequest, Branch: "feature"}, false},
		{"unknown kind", Event{Kind: "release"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestRunResultStatus verifies overall status derivation
func TestRunResultStatus(t *testing.T) {
	result := &RunResult{TotalJobs: 2, Passed: 2}
	if got := result.Status(); got != StatusPassed {
		t.Errorf("Status() = %v, want %v", got, StatusPassed)
	}

	result = &RunResult{TotalJobs: 2, Passed: 1, Failed: 1}
	if got := result.Status(); got != StatusFailed {
		t.Errorf("Status() = %v, want %v", got, StatusFailed)
	}
}

// TestRunResultFailedJobs verifies failed-job filtering
func TestRunResultFailedJobs(t *testing.T) {
	result := &RunResult{
		Jobs: []JobResult{
			{Status: StatusPassed},
			{Status: StatusFailed},
			{Status: StatusCancelled},
		},
	}
	failed := result.FailedJobs()
	if len(failed) != 2 {
		t.Errorf("FailedJobs() returned %d jobs, want 2", len(failed))
	}
}

// TestCoverageSummary verifies the human-readable summary format
func TestCoverageSummary(t *testing.T) {
	report := &CoverageReport{
		LineRate:     0.875,
		BranchRate:   0.5,
		LinesValid:   200,
		LinesCovered: 175,
	}
	got := report.Summary()
	want := "87.5% lines (175/200), 50.0% branches"
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
