package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for stagehand
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stagehand",
		Short: "Local CI pipeline runner",
		Long: `Stagehand runs CI workflows on your machine the way a hosted CI
service would: it evaluates event triggers, expands build matrices
into isolated per-runtime jobs, executes their steps in parallel,
and collects coverage reports.

Workflows are YAML files describing triggers, jobs, matrices, and
steps. Runs are recorded to a local history database for later
inspection and reporting.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewReportCommand())
	cmd.AddCommand(NewWatchCommand())

	return cmd
}
