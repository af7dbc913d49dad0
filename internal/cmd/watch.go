package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/stagehand/internal/logger"
	"github.com/harrison/stagehand/internal/models"
	"github.com/harrison/stagehand/internal/parser"
	"github.com/harrison/stagehand/internal/trigger"
	"github.com/harrison/stagehand/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <workflow-file>",
		Short: "Re-run a workflow whenever project files change",
		Long: `Watch the project directory and re-run the workflow each time the
tree settles after a burst of changes. Every run uses a synthetic push
event on the given branch.

The workflow file is re-read before each run, so edits to it take
effect immediately. Press Ctrl-C to stop watching.`,
		Args: cobra.ExactArgs(1),
		RunE: watchCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .stagehand/config.yaml)")
	cmd.Flags().String("branch", "main", "Branch for the synthetic push event")
	cmd.Flags().Int("max-concurrency", -1, "Maximum number of concurrent jobs (0 = unlimited, -1 = use config)")
	cmd.Flags().String("timeout", "", "Maximum run time per triggered run")
	cmd.Flags().Bool("verbose", false, "Show detailed execution information")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().Bool("keep-workspaces", false, "Preserve per-entry workspaces after each run")
	cmd.Flags().String("project-dir", ".", "Project directory to watch and run against")
	cmd.Flags().Duration("settle", watch.DefaultSettleDelay, "Quiet period before changes trigger a run")

	return cmd
}

// watchCommand implements the watch command logic
func watchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	branch, _ := cmd.Flags().GetString("branch")
	event := models.Event{Kind: models.EventPush, Branch: branch}
	if err := event.Validate(); err != nil {
		return err
	}

	workflowFile := args[0]
	// Parse up front so obvious mistakes surface before waiting on changes
	if _, err := parser.ParseFile(workflowFile); err != nil {
		return fmt.Errorf("failed to load workflow file: %w", err)
	}

	projectDir, _ := cmd.Flags().GetString("project-dir")
	if abs, err := filepath.Abs(projectDir); err == nil {
		projectDir = abs
	}

	watcher, err := watch.NewWatcher(projectDir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", projectDir, err)
	}
	defer watcher.Close()

	if settle, _ := cmd.Flags().GetDuration("settle"); settle > 0 {
		watcher.SetSettleDelay(settle)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logLevel := cfg.LogLevel
	if verbose {
		logLevel = "debug"
	}
	consoleLogger := logger.NewConsoleLogger(cmd.OutOrStdout(), logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (workflow %s, %s)...\n", watcher.RootDir(), workflowFile, event)

	go func() {
		for err := range watcher.Errors() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Watch error: %v\n", err)
		}
	}()

	err = watcher.Run(ctx, func(runCtx context.Context, changed []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d file(s) changed, running %s...\n", len(changed), workflowFile)

		workflow, err := parser.ParseFile(workflowFile)
		if err != nil {
			return fmt.Errorf("failed to load workflow file: %w", err)
		}

		if err := trigger.Evaluate(event, workflow); err != nil {
			var notTriggered *trigger.NotTriggeredError
			if errors.As(err, &notTriggered) {
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow %q is not triggered by %s.\n", workflow.Name, event)
				return nil
			}
			return err
		}

		fileLogger, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, logLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLogger.Close()

		orchestrator, provisioner := buildOrchestrator(cfg, cmd, newMultiLogger(consoleLogger, fileLogger))

		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, cfg.Timeout)
			defer cancel()
		}

		result, err := orchestrator.ExecuteRun(runCtx, workflow, event)
		if err != nil {
			return err
		}

		if err := provisioner.CleanupRun(result.RunID); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}

		if cfg.History.Enabled {
			if err := recordRun(runCtx, cfg, result); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to record run history: %v\n", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Waiting for changes...\n")
		return nil
	})
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(cmd.OutOrStdout(), "\nStopped watching after interrupt.\n")
		return nil
	}
	return err
}
