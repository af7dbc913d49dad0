// Package parser loads workflow definitions from YAML files and resolves
// matrix placeholders in step fields.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harrison/stagehand/internal/models"
)

// yamlStep mirrors the YAML step schema
type yamlStep struct {
	Name            string            `yaml:"name"`
	Run             string            `yaml:"run"`
	Uses            string            `yaml:"uses"`
	With            map[string]string `yaml:"with"`
	Env             map[string]string `yaml:"env"`
	WorkDir         string            `yaml:"working-directory"`
	Always          bool              `yaml:"always"`
	ContinueOnError bool              `yaml:"continue-on-error"`
}

// yamlStrategy mirrors the YAML strategy schema
type yamlStrategy struct {
	Matrix   map[string][]string `yaml:"matrix"`
	Include  []map[string]string `yaml:"include"`
	Exclude  []map[string]string `yaml:"exclude"`
	FailFast *bool               `yaml:"fail-fast"`
}

// yamlJob mirrors the YAML job schema
type yamlJob struct {
	EnvName  string            `yaml:"env-name"`
	Runtime  string            `yaml:"runtime"`
	Coverage string            `yaml:"coverage"`
	Strategy yamlStrategy      `yaml:"strategy"`
	Env      map[string]string `yaml:"env"`
	Steps    []yamlStep        `yaml:"steps"`
}

// yamlTrigger mirrors the YAML "on" block. Nodes are kept raw so that
// presence can be distinguished from an empty mapping: "pull_request: {}"
// and "pull_request:" both declare the trigger.
type yamlTrigger struct {
	Push        *struct {
		Branches []string `yaml:"branches"`
	} `yaml:"push"`
	PullRequest yaml.Node `yaml:"pull_request"`
}

// yamlWorkflow mirrors the top-level workflow schema. Jobs are decoded from
// a raw node to preserve declaration order, which yaml.v3 map decoding
// would lose.
type yamlWorkflow struct {
	Name string            `yaml:"name"`
	On   yamlTrigger       `yaml:"on"`
	Env  map[string]string `yaml:"env"`
	Jobs yaml.Node         `yaml:"jobs"`
}

// ParseFile reads and parses a workflow definition from disk
func ParseFile(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	workflow, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	workflow.FilePath = path
	if workflow.Name == "" {
		base := filepath.Base(path)
		workflow.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return workflow, nil
}

// Parse parses a workflow definition from raw YAML and validates it
func Parse(data []byte) (*models.Workflow, error) {
	var raw yamlWorkflow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	workflow := &models.Workflow{
		Name: raw.Name,
		Env:  sortedEnv(raw.Env),
	}

	if raw.On.Push != nil {
		workflow.On.Push = &models.PushTrigger{Branches: raw.On.Push.Branches}
	}
	// A present pull_request key declares the trigger regardless of content
	if !raw.On.PullRequest.IsZero() {
		workflow.On.PullRequest = &models.PullRequestTrigger{}
	}

	jobs, err := parseJobs(&raw.Jobs)
	if err != nil {
		return nil, err
	}
	workflow.Jobs = jobs

	if err := workflow.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}
	return workflow, nil
}

// parseJobs decodes the jobs mapping node, preserving declaration order
func parseJobs(node *yaml.Node) ([]models.Job, error) {
	if node.IsZero() {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("jobs must be a mapping, got %s", nodeKind(node))
	}

	var jobs []models.Job
	// Mapping node content alternates key, value
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		var rawJob yamlJob
		if err := valueNode.Decode(&rawJob); err != nil {
			return nil, fmt.Errorf("job %q: %w", keyNode.Value, err)
		}

		job := models.Job{
			Name:     keyNode.Value,
			EnvName:  rawJob.EnvName,
			Runtime:  rawJob.Runtime,
			Coverage: rawJob.Coverage,
			Env:      sortedEnv(rawJob.Env),
			Strategy: models.Strategy{
				Matrix:  rawJob.Strategy.Matrix,
				Include: rawJob.Strategy.Include,
				Exclude: rawJob.Strategy.Exclude,
			},
		}
		if rawJob.Strategy.FailFast != nil {
			job.Strategy.FailFast = *rawJob.Strategy.FailFast
		}

		for _, rawStep := range rawJob.Steps {
			job.Steps = append(job.Steps, models.Step{
				Name:            rawStep.Name,
				Run:             rawStep.Run,
				Uses:            rawStep.Uses,
				With:            rawStep.With,
				Env:             sortedEnv(rawStep.Env),
				WorkDir:         rawStep.WorkDir,
				Always:          rawStep.Always,
				ContinueOnError: rawStep.ContinueOnError,
			})
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

// sortedEnv converts a YAML env mapping into a deterministic EnvVar slice
func sortedEnv(env map[string]string) []models.EnvVar {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	// Stable order keeps provisioning and logging reproducible
	sort.Strings(keys)

	vars := make([]models.EnvVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, models.EnvVar{Name: k, Value: env[k]})
	}
	return vars
}

// nodeKind returns a readable name for a YAML node kind
func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
