package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/stagehand/internal/config"
	"github.com/harrison/stagehand/internal/envprov"
	"github.com/harrison/stagehand/internal/executor"
	"github.com/harrison/stagehand/internal/logger"
	"github.com/harrison/stagehand/internal/matrix"
	"github.com/harrison/stagehand/internal/models"
	"github.com/harrison/stagehand/internal/parser"
	"github.com/harrison/stagehand/internal/store"
	"github.com/harrison/stagehand/internal/trigger"
	"github.com/harrison/stagehand/internal/upload"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workflow-file>",
		Short: "Run a workflow for a simulated event",
		Long: `Run a workflow file against a simulated push or pull_request event.

The run command evaluates the workflow's triggers against the event,
expands each job's build matrix into independent entries, provisions an
isolated environment per entry, and executes step sequences in parallel.

Configuration is loaded from .stagehand/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  # Push to main
  stagehand run workflow.yaml --event push --branch main

  # Pull request event
  stagehand run workflow.yaml --event pull_request

  # Other options
  stagehand run --dry-run workflow.yaml       # Expand without executing
  stagehand run --timeout 1h workflow.yaml    # Set 1 hour timeout
  stagehand run --max-concurrency 2 workflow.yaml
  stagehand run --keep-workspaces workflow.yaml
  stagehand run --config custom.yaml workflow.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	// Add flags
	cmd.Flags().String("config", "", "Path to config file (default: .stagehand/config.yaml)")
	cmd.Flags().String("event", "push", "Event kind to simulate (push or pull_request)")
	cmd.Flags().String("branch", "main", "Branch the event targets")
	cmd.Flags().String("commit", "", "Commit SHA attached to the event")
	cmd.Flags().Bool("dry-run", false, "Expand the matrix without executing jobs")
	cmd.Flags().Int("max-concurrency", -1, "Maximum number of concurrent jobs (0 = unlimited, -1 = use config)")
	cmd.Flags().String("timeout", "", "Maximum run time (e.g., 30m, 2h, 1h30m)")
	cmd.Flags().Bool("verbose", false, "Show detailed execution information")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().Bool("keep-workspaces", false, "Preserve per-entry workspaces after the run")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	cmd.Flags().String("project-dir", ".", "Project directory steps run against")
	cmd.Flags().StringArray("matrix-filter", nil, "Only run matrix entries matching key=value (repeatable)")
	cmd.Flags().Bool("fail-fast", false, "Cancel a job's remaining entries on first failure (overrides workflow)")
	cmd.Flags().Bool("no-fail-fast", false, "Run every matrix entry regardless of failures (overrides workflow)")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	event, err := eventFromFlags(cmd)
	if err != nil {
		return err
	}

	// Validate conflicting flags
	if cmd.Flags().Changed("fail-fast") && cmd.Flags().Changed("no-fail-fast") {
		return fmt.Errorf("cannot use both --fail-fast and --no-fail-fast")
	}

	filters, err := parseMatrixFilters(cmd)
	if err != nil {
		return err
	}

	workflowFile := args[0]
	fmt.Fprintf(cmd.OutOrStdout(), "Loading workflow from %s...\n", workflowFile)
	workflow, err := parser.ParseFile(workflowFile)
	if err != nil {
		return fmt.Errorf("failed to load workflow file: %w", err)
	}

	applyFailFastFlags(cmd, workflow)

	// Evaluate triggers before doing any work
	if err := trigger.Evaluate(event, workflow); err != nil {
		var notTriggered *trigger.NotTriggeredError
		if errors.As(err, &notTriggered) {
			fmt.Fprintf(cmd.OutOrStdout(), "Workflow %q is not triggered by %s.\n", workflow.Name, event)
			return nil
		}
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		return printDryRun(cmd, workflow, event, cfg, filters)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logLevel := cfg.LogLevel
	if verbose {
		logLevel = "debug"
	}

	consoleLogger := logger.NewConsoleLogger(cmd.OutOrStdout(), logLevel)
	fileLogger, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, logLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLogger.Close()

	orchestrator, provisioner := buildOrchestrator(cfg, cmd, newMultiLogger(consoleLogger, fileLogger))
	if len(filters) > 0 {
		orchestrator.SetEntryFilter(entryFilter(filters))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	result, err := orchestrator.ExecuteRun(ctx, workflow, event)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	// Per-entry workspaces are removed as jobs finish; the run directory
	// that contained them goes last.
	if err := provisioner.CleanupRun(result.RunID); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		if err := recordRun(ctx, cfg, result); err != nil {
			// History is best-effort; the run outcome stands
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to record run history: %v\n", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nRun log: %s\n", fileLogger.RunFile())

	if result.Failed > 0 {
		return fmt.Errorf("%d of %d job(s) failed", result.Failed, result.TotalJobs)
	}
	return nil
}

// loadRunConfig loads configuration and merges run command flags into it
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Build flag pointers for merge (only non-default values)
	var maxConcurrencyPtr *int
	if cmd.Flags().Changed("max-concurrency") {
		maxConcurrency, _ := cmd.Flags().GetInt("max-concurrency")
		// Negative means "use config", even when passed explicitly
		if maxConcurrency >= 0 {
			maxConcurrencyPtr = &maxConcurrency
		}
	}

	var timeoutPtr *time.Duration
	if cmd.Flags().Changed("timeout") {
		timeoutStr, _ := cmd.Flags().GetString("timeout")
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", timeoutStr, err)
		}
		timeoutPtr = &timeout
	}

	var logDirPtr *string
	if cmd.Flags().Changed("log-dir") {
		logDir, _ := cmd.Flags().GetString("log-dir")
		logDirPtr = &logDir
	}

	var keepWorkspacesPtr *bool
	if cmd.Flags().Changed("keep-workspaces") {
		keepWorkspaces, _ := cmd.Flags().GetBool("keep-workspaces")
		keepWorkspacesPtr = &keepWorkspaces
	}

	// Merge CLI flags with config (flags take precedence)
	cfg.MergeWithFlags(maxConcurrencyPtr, timeoutPtr, logDirPtr, keepWorkspacesPtr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// eventFromFlags builds the simulated event from run command flags
func eventFromFlags(cmd *cobra.Command) (models.Event, error) {
	kind, _ := cmd.Flags().GetString("event")
	branch, _ := cmd.Flags().GetString("branch")
	commit, _ := cmd.Flags().GetString("commit")

	event := models.Event{
		Kind:   models.EventKind(kind),
		Branch: branch,
		Commit: commit,
	}
	if err := event.Validate(); err != nil {
		return models.Event{}, err
	}
	return event, nil
}

// buildOrchestrator wires the execution pipeline from configuration. The
// provisioner is returned alongside so callers can remove the run's
// workspace directory once the run finishes.
func buildOrchestrator(cfg *config.Config, cmd *cobra.Command, log executor.Logger) (*executor.Orchestrator, *envprov.Provisioner) {
	var uploader executor.CoverageUploader
	if cfg.Upload.URL != "" {
		uploader = upload.NewUploader(cfg.Upload.URL, cfg.Upload.TokenEnv, cfg.Upload.Timeout)
	}

	projectDir, _ := cmd.Flags().GetString("project-dir")
	if projectDir == "" {
		projectDir = "."
	}
	if abs, err := filepath.Abs(projectDir); err == nil {
		projectDir = abs
	}

	steps := executor.NewStepExecutor(executor.NewShellRunner(), uploader)
	provisioner := envprov.NewProvisioner(cfg.WorkspaceDir, cfg.KeepWorkspaces)
	jobs := executor.NewJobExecutor(steps, provisioner, projectDir)
	return executor.NewOrchestrator(jobs, log, cfg.MaxConcurrency), provisioner
}

// recordRun persists the run result to the history database
func recordRun(ctx context.Context, cfg *config.Config, result *models.RunResult) error {
	s, err := store.NewStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SaveRun(ctx, result); err != nil {
		return err
	}

	// Retention is applied opportunistically on every recorded run
	if cfg.History.KeepDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.History.KeepDays)
		if _, err := s.Prune(ctx, cutoff); err != nil {
			return err
		}
	}
	return nil
}

// parseMatrixFilters parses repeated key=value --matrix-filter flags
func parseMatrixFilters(cmd *cobra.Command) (map[string]string, error) {
	raw, _ := cmd.Flags().GetStringArray("matrix-filter")
	if len(raw) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(raw))
	for _, f := range raw {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid matrix filter %q, want key=value", f)
		}
		filters[key] = value
	}
	return filters, nil
}

// entryFilter builds the entry predicate for a filter map: every filtered
// axis must be present with the filtered value.
func entryFilter(filters map[string]string) func(models.MatrixEntry) bool {
	return func(entry models.MatrixEntry) bool {
		for key, value := range filters {
			if entry.Values[key] != value {
				return false
			}
		}
		return true
	}
}

// applyFailFastFlags overrides every job's fail-fast setting when either
// override flag was passed
func applyFailFastFlags(cmd *cobra.Command, workflow *models.Workflow) {
	if cmd.Flags().Changed("fail-fast") {
		for i := range workflow.Jobs {
			workflow.Jobs[i].Strategy.FailFast = true
		}
	} else if cmd.Flags().Changed("no-fail-fast") {
		for i := range workflow.Jobs {
			workflow.Jobs[i].Strategy.FailFast = false
		}
	}
}

// printDryRun shows the expanded execution plan without running anything
func printDryRun(cmd *cobra.Command, workflow *models.Workflow, event models.Event, cfg *config.Config, filters map[string]string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nWorkflow: %s\n", workflow.Name)
	fmt.Fprintf(out, "Event: %s\n", event)
	fmt.Fprintf(out, "Timeout: %s\n", cfg.Timeout)
	if cfg.MaxConcurrency > 0 {
		fmt.Fprintf(out, "Max concurrency: %d\n", cfg.MaxConcurrency)
	}

	accept := func(models.MatrixEntry) bool { return true }
	if len(filters) > 0 {
		accept = entryFilter(filters)
	}

	total := 0
	fmt.Fprintf(out, "\nJobs:\n")
	for _, job := range workflow.Jobs {
		var entries []models.MatrixEntry
		for _, entry := range matrix.Expand(job.Strategy) {
			if accept(entry) {
				entries = append(entries, entry)
			}
		}
		total += len(entries)
		fmt.Fprintf(out, "  %s: %d entr%s\n", job.Name, len(entries), plural(len(entries), "y", "ies"))
		for _, entry := range entries {
			expanded, err := parser.ExpandJob(job, entry)
			if err != nil {
				return fmt.Errorf("job %q entry %q: %w", job.Name, entry.Name, err)
			}
			label := entry.Name
			if label == "" {
				label = "(no matrix)"
			}
			fmt.Fprintf(out, "    - %s: %d step(s)", label, len(expanded.Steps))
			if expanded.Runtime != "" {
				fmt.Fprintf(out, ", runtime %s", expanded.Runtime)
			}
			fmt.Fprintln(out)
		}
	}

	fmt.Fprintf(out, "\nDry-run mode: %d job(s) would execute.\n", total)
	return nil
}

// plural picks the suffix matching a count
func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
