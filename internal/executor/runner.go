package executor

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandRunner abstracts shell command execution so tests can substitute
// a fake without spawning processes.
type CommandRunner interface {
	// Run executes the command with the given working directory and
	// environment, returning combined stdout/stderr.
	Run(ctx context.Context, command string, dir string, env []string) (string, error)
}

// ShellRunner executes commands through the system shell.
type ShellRunner struct {
	// Shell is the shell binary used for command execution.
	// Defaults to "sh" when empty.
	Shell string
}

// NewShellRunner creates a ShellRunner using the default shell.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{Shell: "sh"}
}

// Run executes the command via "<shell> -c". The context cancels the
// process; the environment, when non-nil, replaces the inherited one.
func (r *ShellRunner) Run(ctx context.Context, command string, dir string, env []string) (string, error) {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(output), fmt.Errorf("%w: exit status %d", ErrStepFailed, exitErr.ExitCode())
		}
		return string(output), fmt.Errorf("failed to start command: %w", err)
	}

	return string(output), nil
}
