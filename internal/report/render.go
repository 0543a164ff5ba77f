package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Formats accepted by Render.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Render writes s in the given format.
func Render(w io.Writer, s *Summary, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return Text(w, s)
	case FormatMarkdown, "md":
		return Markdown(w, s)
	case FormatJSON:
		return JSON(w, s)
	}
	return fmt.Errorf("unknown report format %q (want text, markdown or json)", format)
}

func icon(outcome string) string {
	switch outcome {
	case OutcomeSuccess:
		return "✓"
	case OutcomePartial:
		return "!"
	}
	return "✗"
}

// Text writes the console summary table.
func Text(w io.Writer, s *Summary) error {
	title := "📊 Mirror Summary"
	if s.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	fmt.Fprintf(w, "[%s] %s -> %s (%s)\n", icon(s.Outcome), s.Table, s.TargetTable, s.Driver)
	fmt.Fprintf(w, "    Source    : %s\n", s.SourceStatus)
	fmt.Fprintf(w, "    Target    : %s\n", s.TargetStatus)
	fmt.Fprintf(w, "    Table     : %s\n", s.TableStatus)
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "%-12s %8d\n", "Inserted", s.Inserted)
	fmt.Fprintf(w, "%-12s %8d\n", "Updated", s.Updated)
	fmt.Fprintf(w, "%-12s %8d\n", "Deleted", s.Deleted)
	fmt.Fprintf(w, "%-12s %8d\n", "Unchanged", s.Unchanged)
	fmt.Fprintf(w, "%-12s %8d\n", "Failed", s.Failed)
	fmt.Fprintf(w, "%-12s %8d\n", "Skipped", s.Skipped)
	fmt.Fprintln(w, "--------------------------------------------------")
	for _, e := range s.Errors {
		fmt.Fprintf(w, "    └ Error: %s\n", e)
	}
	_, err := fmt.Fprintf(w, "Outcome: %s in %s\n", s.Outcome, s.Duration.Round(time.Millisecond))
	return err
}

// Markdown writes the summary as a GitHub-flavoured markdown section.
func Markdown(w io.Writer, s *Summary) error {
	title := "Database mirror: `" + s.Table + "`"
	if s.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(w, "### %s %s\n\n", icon(s.Outcome), title)
	fmt.Fprintln(w, "| | |")
	fmt.Fprintln(w, "|---|---|")
	fmt.Fprintf(w, "| Target table | `%s` |\n", s.TargetTable)
	fmt.Fprintf(w, "| Driver | %s |\n", s.Driver)
	fmt.Fprintf(w, "| Source connection | %s |\n", s.SourceStatus)
	fmt.Fprintf(w, "| Target connection | %s |\n", s.TargetStatus)
	fmt.Fprintf(w, "| Table status | %s |\n", s.TableStatus)
	fmt.Fprintf(w, "| Outcome | %s |\n", s.Outcome)
	fmt.Fprintf(w, "| Started | %s |\n", s.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "| Duration | %s |\n\n", s.Duration.Round(time.Millisecond))

	fmt.Fprintln(w, "| Inserted | Updated | Deleted | Unchanged | Failed | Skipped |")
	fmt.Fprintln(w, "|---:|---:|---:|---:|---:|---:|")
	fmt.Fprintf(w, "| %d | %d | %d | %d | %d | %d |\n",
		s.Inserted, s.Updated, s.Deleted, s.Unchanged, s.Failed, s.Skipped)

	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "\n<details><summary>Errors</summary>")
		fmt.Fprintln(w)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "- %s\n", strings.ReplaceAll(e, "\n", " "))
		}
		fmt.Fprintln(w, "\n</details>")
	}
	_, err := fmt.Fprintln(w)
	return err
}

// JSON writes the summary as an indented JSON document.
func JSON(w io.Writer, s *Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// AppendStepSummary appends the markdown rendering to path, the file CI runners expose as
// GITHUB_STEP_SUMMARY. An empty path is a no-op.
func AppendStepSummary(path string, s *Summary) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open step summary: %w", err)
	}
	defer f.Close()
	if err := Markdown(f, s); err != nil {
		return fmt.Errorf("failed to write step summary: %w", err)
	}
	return nil
}

// Status is one operation_type bucket of the status command.
type Status struct {
	OperationType string
	Rows          int64
}

// StatusTable writes the target status report: row counts per operation_type and the most
// recent change.
func StatusTable(w io.Writer, table string, buckets []Status, lastUpdated string) error {
	fmt.Fprintf(w, "\n📊 Target Status: %s\n", table)
	var total int64
	for _, b := range buckets {
		op := b.OperationType
		if op == "" {
			op = "(null)"
		}
		fmt.Fprintf(w, "%-12s %10d\n", op, b.Rows)
		total += b.Rows
	}
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "%-12s %10d\n", "Total", total)
	if lastUpdated == "" {
		lastUpdated = "never"
	}
	_, err := fmt.Fprintf(w, "Last updated: %s\n", lastUpdated)
	return err
}
