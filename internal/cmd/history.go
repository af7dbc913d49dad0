package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/stagehand/internal/config"
	"github.com/harrison/stagehand/internal/store"
)

// NewHistoryCommand creates the history command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded run history",
		Long: `Inspect the local run-history database.

Runs are recorded automatically after each execution unless history is
disabled in configuration or --no-history was passed to run.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .stagehand/config.yaml)")

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

// openHistoryStore opens the history database named by configuration
func openHistoryStore(cmd *cobra.Command) (*store.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s, err := store.NewStore(cfg.History.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return s, nil
}

func newHistoryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openHistoryStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			printRunList(cmd.OutOrStdout(), runs)
			return nil
		},
		SilenceUsage: true,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = all)")
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its job results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openHistoryStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("no run with ID %q", args[0])
				}
				return fmt.Errorf("failed to load run: %w", err)
			}

			printRunDetail(cmd.OutOrStdout(), run)
			return nil
		},
		SilenceUsage: true,
	}
}

func newHistoryPruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openHistoryStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			days, _ := cmd.Flags().GetInt("older-than")
			if days <= 0 {
				return fmt.Errorf("--older-than must be a positive number of days")
			}

			cutoff := time.Now().AddDate(0, 0, -days)
			removed, err := s.Prune(cmd.Context(), cutoff)
			if err != nil {
				return fmt.Errorf("failed to prune runs: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s) older than %d day(s).\n", removed, days)
			return nil
		},
		SilenceUsage: true,
	}
	cmd.Flags().Int("older-than", 90, "Delete runs older than this many days")
	return cmd
}

// printRunList writes one line per run
func printRunList(out io.Writer, runs []*store.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs.")
		return
	}
	for _, run := range runs {
		event := run.EventKind
		if run.Branch != "" {
			event = fmt.Sprintf("%s on %s", run.EventKind, run.Branch)
		}
		fmt.Fprintf(out, "%s  %-9s %s (%s) %d/%d passed in %s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Status,
			run.Workflow,
			event,
			run.Passed,
			run.TotalJobs,
			run.Duration.Round(time.Second),
		)
		fmt.Fprintf(out, "    %s\n", run.RunID)
	}
}

// printRunDetail writes a run and each of its job records
func printRunDetail(out io.Writer, run *store.RunRecord) {
	fmt.Fprintf(out, "Run %s\n", run.RunID)
	fmt.Fprintf(out, "  Workflow: %s\n", run.Workflow)
	event := run.EventKind
	if run.Branch != "" {
		event = fmt.Sprintf("%s on %s", run.EventKind, run.Branch)
	}
	fmt.Fprintf(out, "  Event: %s\n", event)
	if run.Commit != "" {
		fmt.Fprintf(out, "  Commit: %s\n", run.Commit)
	}
	fmt.Fprintf(out, "  Status: %s\n", run.Status)
	fmt.Fprintf(out, "  Started: %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "  Duration: %s\n", run.Duration.Round(time.Second))
	fmt.Fprintf(out, "  Jobs: %d total, %d passed, %d failed\n", run.TotalJobs, run.Passed, run.Failed)

	for _, job := range run.Jobs {
		label := job.JobName
		if job.EntryName != "" {
			label = fmt.Sprintf("%s [%s]", job.JobName, job.EntryName)
		}
		fmt.Fprintf(out, "\n  %s\n", label)
		fmt.Fprintf(out, "    Status: %s\n", job.Status)
		if job.Runtime != "" {
			fmt.Fprintf(out, "    Runtime: %s\n", job.Runtime)
		}
		fmt.Fprintf(out, "    Duration: %s\n", job.Duration.Round(time.Second))
		if job.HasCoverage {
			fmt.Fprintf(out, "    Coverage: %.1f%% lines\n", job.LineRate*100)
		}
		if job.ErrorMessage != "" {
			fmt.Fprintf(out, "    Error: %s\n", job.ErrorMessage)
		}
	}
}
