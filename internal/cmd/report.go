package cmd

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/stagehand/internal/report"
)

// NewReportCommand creates the report command
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Render a recorded run as a markdown or HTML report",
		Long: `Render a recorded run as a report document.

By default the markdown report is printed to stdout. With --output the
report is written to a file; --format html renders a standalone HTML
page instead.

Examples:
  stagehand report 2f7c... > report.md
  stagehand report 2f7c... --format html --output report.html`,
		Args: cobra.ExactArgs(1),
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

			generator := report.NewGenerator()
			data := generator.MarkdownFromRecord(run)

			format, _ := cmd.Flags().GetString("format")
			switch format {
			case "md", "markdown":
			case "html":
				data, err = generator.HTML(data)
				if err != nil {
					return fmt.Errorf("failed to render HTML: %w", err)
				}
			default:
				return fmt.Errorf("unknown format %q (want md or html)", format)
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			if err := report.Write(output, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", output)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .stagehand/config.yaml)")
	cmd.Flags().String("format", "md", "Report format: md or html")
	cmd.Flags().String("output", "", "Write the report to this file instead of stdout")

	return cmd
}
