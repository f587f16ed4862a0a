// Package report renders a finished run as Markdown or HTML.
package report

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valpere/redraft/internal/refiner"
)

// Meta is run information that is not part of the trace.
type Meta struct {
	RunID     string
	Oracle    string
	Criteria  refiner.Criteria
	CreatedAt time.Time
	// Selection explains a best-of-N choice, if there was one.
	Selection string
}

// Markdown renders task, history and final draft.
func Markdown(task string, res refiner.Result, meta Meta) string {
	var b strings.Builder

	b.WriteString("# Refinement report\n\n")
	fmt.Fprintf(&b, "**Task:** %s\n\n", oneLine(task))
	if meta.RunID != "" {
		fmt.Fprintf(&b, "- Run: `%s`\n", meta.RunID)
	}
	if meta.Oracle != "" {
		fmt.Fprintf(&b, "- Oracle: %s\n", meta.Oracle)
	}
	if !meta.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Date: %s\n", meta.CreatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Stop reason: %s\n", res.Trace.Reason)
	fmt.Fprintf(&b, "- Rounds: %d\n\n", res.Final.Round)

	if len(meta.Criteria) > 0 {
		b.WriteString("## Criteria\n\n")
		for _, name := range meta.Criteria.Names() {
			fmt.Fprintf(&b, "- **%s**: %s\n", name, meta.Criteria[name])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Final draft (round %d%s)\n\n", res.Final.Round, scoreSuffix(res.Final.Score))
	b.WriteString(res.Final.Content)
	b.WriteString("\n\n")

	if meta.Selection != "" {
		b.WriteString("## Selection\n\n")
		b.WriteString(meta.Selection)
		b.WriteString("\n\n")
	}

	b.WriteString("## History\n\n")
	for _, st := range res.Trace.Steps {
		fmt.Fprintf(&b, "### Round %d: %s", st.Round, st.Kind)
		if st.Failed {
			b.WriteString(" (failed)")
		}
		b.WriteString("\n\n")
		switch {
		case st.Failed:
			fmt.Fprintf(&b, "> %s\n\n", st.Error)
		case st.Kind == refiner.StepScore && st.Score != nil:
			fmt.Fprintf(&b, "Score: %.2f\n\n", *st.Score)
		default:
			b.WriteString(st.Content)
			b.WriteString("\n\n")
		}
	}

	if res.Trace.Failure != nil {
		fmt.Fprintf(&b, "## Failure\n\n%s\n", res.Trace.Failure)
	}
	return b.String()
}

// HTML renders the Markdown report as a standalone page.
func HTML(task string, res refiner.Result, meta Meta) string {
	body := renderHTML([]byte(Markdown(task, res, meta)))

	title := Title(res.Final.Content)
	if title == "" {
		title = "Refinement report"
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString(`<style>
body { font-family: sans-serif; max-width: 48em; margin: 2em auto; line-height: 1.5; }
h3 { color: #555; }
blockquote { color: #a00; }
</style>
`)
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// Write renders the report in the format implied by the file extension
// (.html/.htm or Markdown otherwise) and writes it to path.
func Write(path, task string, res refiner.Result, meta Meta) error {
	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		content = HTML(task, res, meta)
	default:
		content = Markdown(task, res, meta)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func scoreSuffix(s *float64) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf(", score %.2f", *s)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
