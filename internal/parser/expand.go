package parser

import (
	"fmt"
	"regexp"

	"github.com/harrison/stagehand/internal/models"
)

// matrixRef matches "${{ matrix.<key> }}" with flexible inner whitespace
var matrixRef = regexp.MustCompile(`\$\{\{\s*matrix\.([A-Za-z0-9_-]+)\s*\}\}`)

// ExpandString substitutes matrix placeholders in s with the entry's
// values. A reference to an axis the entry does not define is an error.
func ExpandString(s string, entry models.MatrixEntry) (string, error) {
	var expandErr error
	expanded := matrixRef.ReplaceAllStringFunc(s, func(match string) string {
		key := matrixRef.FindStringSubmatch(match)[1]
		value, ok := entry.Values[key]
		if !ok {
			if expandErr == nil {
				expandErr = fmt.Errorf("undefined matrix axis %q in %q", key, s)
			}
			return match
		}
		return value
	})
	if expandErr != nil {
		return "", expandErr
	}
	return expanded, nil
}

// ExpandJob resolves all matrix placeholders in a job definition for one
// matrix entry, returning a copy with concrete values. The original job is
// not modified.
func ExpandJob(job models.Job, entry models.MatrixEntry) (models.Job, error) {
	expanded := job

	var err error
	if expanded.EnvName, err = ExpandString(job.EnvName, entry); err != nil {
		return models.Job{}, fmt.Errorf("env-name: %w", err)
	}
	if expanded.Runtime, err = ExpandString(job.Runtime, entry); err != nil {
		return models.Job{}, fmt.Errorf("runtime: %w", err)
	}
	if expanded.Coverage, err = ExpandString(job.Coverage, entry); err != nil {
		return models.Job{}, fmt.Errorf("coverage: %w", err)
	}

	expanded.Env, err = expandEnv(job.Env, entry)
	if err != nil {
		return models.Job{}, err
	}

	expanded.Steps = make([]models.Step, len(job.Steps))
	for i, step := range job.Steps {
		expandedStep, err := expandStep(step, entry)
		if err != nil {
			return models.Job{}, fmt.Errorf("step %q: %w", step.Name, err)
		}
		expanded.Steps[i] = expandedStep
	}

	return expanded, nil
}

// expandStep resolves placeholders in one step
func expandStep(step models.Step, entry models.MatrixEntry) (models.Step, error) {
	expanded := step

	var err error
	if expanded.Run, err = ExpandString(step.Run, entry); err != nil {
		return models.Step{}, err
	}
	if expanded.WorkDir, err = ExpandString(step.WorkDir, entry); err != nil {
		return models.Step{}, err
	}

	if len(step.With) > 0 {
		expanded.With = make(map[string]string, len(step.With))
		for k, v := range step.With {
			if expanded.With[k], err = ExpandString(v, entry); err != nil {
				return models.Step{}, err
			}
		}
	}

	expanded.Env, err = expandEnv(step.Env, entry)
	if err != nil {
		return models.Step{}, err
	}

	return expanded, nil
}

// expandEnv resolves placeholders in environment variable values
func expandEnv(env []models.EnvVar, entry models.MatrixEntry) ([]models.EnvVar, error) {
	if len(env) == 0 {
		return nil, nil
	}
	expanded := make([]models.EnvVar, len(env))
	for i, v := range env {
		value, err := ExpandString(v.Value, entry)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", v.Name, err)
		}
		expanded[i] = models.EnvVar{Name: v.Name, Value: value}
	}
	return expanded, nil
}
