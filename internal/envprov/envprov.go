// Package envprov provisions isolated execution environments for matrix
// entries. Each entry gets its own workspace directory and environment
// variable set, so parallel jobs never share mutable state.
package envprov

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/stagehand/internal/models"
)

// Environment is a provisioned, isolated execution environment for one
// matrix entry's job.
type Environment struct {
	Name    string   // Resolved environment name
	Runtime string   // Runtime version bound to this environment
	WorkDir string   // Isolated workspace directory
	Env     []string // Full environment variable set, "KEY=value" form
}

// Provisioner creates and tears down per-entry environments.
type Provisioner struct {
	baseDir string
	keep    bool
}

// NewProvisioner creates a Provisioner rooted at baseDir.
// If keep is true, Cleanup leaves workspaces on disk for inspection.
func NewProvisioner(baseDir string, keep bool) *Provisioner {
	return &Provisioner{baseDir: baseDir, keep: keep}
}

// Provision creates the isolated workspace for one matrix entry and builds
// its environment variable set. The process environment is inherited, then
// extended with run metadata, matrix axis bindings, and workflow/job env
// declarations (later entries override earlier ones).
func (p *Provisioner) Provision(runID string, job models.Job, entry models.MatrixEntry, extra []models.EnvVar) (*Environment, error) {
	name := job.EnvName
	if name == "" {
		name = defaultEnvName(job, entry)
	}

	workDir := filepath.Join(p.baseDir, runID, sanitizeDirName(name))
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", workDir, err)
	}

	env := os.Environ()
	env = append(env, fmt.Sprintf("STAGEHAND_RUN_ID=%s", runID))
	env = append(env, fmt.Sprintf("STAGEHAND_ENV_NAME=%s", name))
	env = append(env, fmt.Sprintf("STAGEHAND_WORKSPACE=%s", workDir))
	if job.Runtime != "" {
		env = append(env, fmt.Sprintf("STAGEHAND_RUNTIME=%s", job.Runtime))
	}

	// Matrix axis bindings, e.g. MATRIX_RUNTIME=3.9
	axes := make([]string, 0, len(entry.Values))
	for axis := range entry.Values {
		axes = append(axes, axis)
	}
	sort.Strings(axes)
	for _, axis := range axes {
		env = append(env, fmt.Sprintf("MATRIX_%s=%s", envVarName(axis), entry.Values[axis]))
	}

	for _, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", v.Name, v.Value))
	}

	return &Environment{
		Name:    name,
		Runtime: job.Runtime,
		WorkDir: workDir,
		Env:     env,
	}, nil
}

// Cleanup removes the environment's workspace unless the provisioner was
// configured to keep workspaces.
func (p *Provisioner) Cleanup(env *Environment) error {
	if p.keep || env == nil {
		return nil
	}
	if err := os.RemoveAll(env.WorkDir); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", env.WorkDir, err)
	}
	return nil
}

// CleanupRun removes the whole run directory after all entries finish.
func (p *Provisioner) CleanupRun(runID string) error {
	if p.keep {
		return nil
	}
	runDir := filepath.Join(p.baseDir, runID)
	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to remove run directory %s: %w", runDir, err)
	}
	return nil
}

// defaultEnvName derives an environment name when the job declares none
func defaultEnvName(job models.Job, entry models.MatrixEntry) string {
	if entry.Name == "" {
		return job.Name
	}
	return fmt.Sprintf("%s-%s", job.Name, sanitizeDirName(entry.Name))
}

// sanitizeDirName replaces characters unsafe in directory names
func sanitizeDirName(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		" ", "",
		",", "_",
		"=", "-",
	)
	return replacer.Replace(name)
}

// envVarName converts a matrix axis name to environment variable form:
// uppercased, with dashes mapped to underscores.
func envVarName(axis string) string {
	return strings.ToUpper(strings.ReplaceAll(axis, "-", "_"))
}
