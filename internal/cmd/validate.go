package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrison/stagehand/internal/matrix"
	"github.com/harrison/stagehand/internal/parser"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow-file>...",
		Short: "Validate one or more workflow files",
		Long: `Parse and validate workflow files, checking for:
  - At least one job and one trigger
  - Push triggers declare target branches
  - Unique job names
  - Steps declare exactly one of run or uses
  - Matrix placeholders reference declared axes

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateWorkflows(args, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	return cmd
}

// validateWorkflows validates each workflow file and reports per-file results
func validateWorkflows(paths []string, output io.Writer) error {
	failures := 0
	for _, path := range paths {
		if err := validateWorkflow(path, output); err != nil {
			fmt.Fprintf(output, "✗ %s: %v\n", path, err)
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d workflow file(s) invalid", failures, len(paths))
	}
	return nil
}

// validateWorkflow validates one file, including matrix placeholder expansion
func validateWorkflow(path string, output io.Writer) error {
	workflow, err := parser.ParseFile(path)
	if err != nil {
		return err
	}

	// Expanding every entry catches placeholders naming undeclared axes
	total := 0
	for _, job := range workflow.Jobs {
		entries := matrix.Expand(job.Strategy)
		total += len(entries)
		for _, entry := range entries {
			if _, err := parser.ExpandJob(job, entry); err != nil {
				return fmt.Errorf("job %q entry %q: %w", job.Name, entry.Name, err)
			}
		}
	}

	fmt.Fprintf(output, "✓ %s: workflow %q, %d job(s), %d matrix entr%s\n",
		path, workflow.Name, len(workflow.Jobs), total, plural(total, "y", "ies"))
	return nil
}
