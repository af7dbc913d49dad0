// Package report renders workflow run results as markdown and HTML
// documents.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/harrison/stagehand/internal/filelock"
	"github.com/harrison/stagehand/internal/models"
	"github.com/harrison/stagehand/internal/store"
)

// Generator renders run reports
type Generator struct {
	markdown goldmark.Markdown
}

// NewGenerator creates a Generator
func NewGenerator() *Generator {
	return &Generator{
		markdown: goldmark.New(),
	}
}

// jobLine is the per-job view shared by both report sources
type jobLine struct {
	Label    string
	Runtime  string
	Status   string
	Duration time.Duration
	Coverage string
	Error    string
}

// runView is the source-neutral report input
type runView struct {
	RunID     string
	Workflow  string
	Event     string
	Status    string
	TotalJobs int
	Passed    int
	Failed    int
	StartedAt time.Time
	Duration  time.Duration
	Jobs      []jobLine
}

// Markdown renders a just-completed run as a markdown report
func (g *Generator) Markdown(result *models.RunResult) []byte {
	view := runView{
		RunID:     result.RunID,
		Workflow:  result.Workflow,
		Event:     result.Event.String(),
		Status:    string(result.Status()),
		TotalJobs: result.TotalJobs,
		Passed:    result.Passed,
		Failed:    result.Failed,
		StartedAt: result.StartedAt,
		Duration:  result.Duration,
	}
	for _, job := range result.Jobs {
		line := jobLine{
			Label:    jobLabel(job.Job.Name, job.Entry.Name),
			Runtime:  job.Runtime,
			Status:   string(job.Status),
			Duration: job.Duration,
		}
		if job.Coverage != nil {
			line.Coverage = job.Coverage.Summary()
		}
		if job.Error != nil {
			line.Error = job.Error.Error()
		}
		view.Jobs = append(view.Jobs, line)
	}
	return renderMarkdown(view)
}

// MarkdownFromRecord renders a persisted run record as a markdown report
func (g *Generator) MarkdownFromRecord(rec *store.RunRecord) []byte {
	event := rec.EventKind
	if rec.Branch != "" {
		event = fmt.Sprintf("%s on %s", rec.EventKind, rec.Branch)
	}
	view := runView{
		RunID:     rec.RunID,
		Workflow:  rec.Workflow,
		Event:     event,
		Status:    rec.Status,
		TotalJobs: rec.TotalJobs,
		Passed:    rec.Passed,
		Failed:    rec.Failed,
		StartedAt: rec.StartedAt,
		Duration:  rec.Duration,
	}
	for _, job := range rec.Jobs {
		line := jobLine{
			Label:    jobLabel(job.JobName, job.EntryName),
			Runtime:  job.Runtime,
			Status:   job.Status,
			Duration: job.Duration,
			Error:    job.ErrorMessage,
		}
		if job.HasCoverage {
			line.Coverage = fmt.Sprintf("%.1f%% lines", job.LineRate*100)
		}
		view.Jobs = append(view.Jobs, line)
	}
	return renderMarkdown(view)
}

// HTML converts a markdown report into a standalone HTML page
func (g *Generator) HTML(markdown []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := g.markdown.Convert(markdown, &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	page.WriteString("<meta charset=\"utf-8\">\n")
	page.WriteString("<title>Run Report</title>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Write writes report content to path atomically, holding a file lock so
// concurrent report writers never interleave.
func Write(path string, data []byte) error {
	if err := filelock.LockAndWrite(path, data); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// renderMarkdown builds the markdown document for a run view
func renderMarkdown(view runView) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Run Report: %s\n\n", view.Workflow)
	fmt.Fprintf(&sb, "- **Run ID**: %s\n", view.RunID)
	fmt.Fprintf(&sb, "- **Event**: %s\n", view.Event)
	fmt.Fprintf(&sb, "- **Status**: %s\n", view.Status)
	fmt.Fprintf(&sb, "- **Jobs**: %d total, %d passed, %d failed\n", view.TotalJobs, view.Passed, view.Failed)
	if !view.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Started**: %s\n", view.StartedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "- **Duration**: %s\n", formatDuration(view.Duration))
	sb.WriteString("\n## Jobs\n\n")

	for _, job := range view.Jobs {
		fmt.Fprintf(&sb, "### %s\n\n", job.Label)
		fmt.Fprintf(&sb, "- **Status**: %s\n", job.Status)
		if job.Runtime != "" {
			fmt.Fprintf(&sb, "- **Runtime**: %s\n", job.Runtime)
		}
		fmt.Fprintf(&sb, "- **Duration**: %s\n", formatDuration(job.Duration))
		if job.Coverage != "" {
			fmt.Fprintf(&sb, "- **Coverage**: %s\n", job.Coverage)
		}
		if job.Error != "" {
			fmt.Fprintf(&sb, "- **Error**: %s\n", job.Error)
		}
		sb.WriteString("\n")
	}

	return []byte(sb.String())
}

// jobLabel builds the display label for a job and its matrix entry
func jobLabel(jobName, entryName string) string {
	if entryName == "" {
		return jobName
	}
	return fmt.Sprintf("%s [%s]", jobName, entryName)
}

// formatDuration trims sub-second noise from durations a human reads
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
