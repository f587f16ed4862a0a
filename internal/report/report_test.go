package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valpere/redraft/internal/refiner"
)

func sampleResult() refiner.Result {
	score := 8.0
	return refiner.Result{
		Final: refiner.Draft{Content: "# Fresh Bread\n\nBaked daily, *loved* always.", Round: 1, Score: &score},
		Trace: refiner.RunTrace{
			Steps: []refiner.Step{
				{Kind: refiner.StepGenerate, Round: 0, Content: "Bread."},
				{Kind: refiner.StepCritique, Round: 0, Content: "Too short."},
				{Kind: refiner.StepRevise, Round: 1, Content: "# Fresh Bread\n\nBaked daily, *loved* always."},
				{Kind: refiner.StepScore, Round: 1, Score: &score},
			},
			Reason: refiner.StopBudgetExhausted,
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown("Write a\nbakery tagline", sampleResult(), Meta{
		RunID:     "abc",
		Oracle:    "ollama:llama3.2",
		Criteria:  refiner.Criteria{"tone": "warm", "brevity": "short"},
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	for _, want := range []string{
		"**Task:** Write a bakery tagline",
		"- Run: `abc`",
		"- Stop reason: budget_exhausted",
		"## Final draft (round 1, score 8.00)",
		"### Round 0: critique",
		"Too short.",
		"Score: 8.00",
		"2025-01-02T03:04:05Z",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q\n%s", want, md)
		}
	}
	if strings.Index(md, "**brevity**") > strings.Index(md, "**tone**") {
		t.Error("criteria should be sorted")
	}
}

func TestMarkdown_Failure(t *testing.T) {
	res := refiner.Result{
		Trace: refiner.RunTrace{
			Steps:   []refiner.Step{{Kind: refiner.StepGenerate, Failed: true, Error: "timeout"}},
			Reason:  refiner.StopOracleFailure,
			Failure: errors.New("generate failed in round 0: timeout"),
		},
	}
	md := Markdown("t", res, Meta{})

	if !strings.Contains(md, "(failed)") || !strings.Contains(md, "> timeout") {
		t.Errorf("failed step not rendered:\n%s", md)
	}
	if !strings.Contains(md, "## Failure") {
		t.Errorf("failure section missing:\n%s", md)
	}
}

func TestHTML(t *testing.T) {
	out := HTML("task", sampleResult(), Meta{})

	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Error("expected a full HTML document")
	}
	if !strings.Contains(out, "<title>Fresh Bread</title>") {
		t.Errorf("expected title from final draft heading:\n%s", out)
	}
	if !strings.Contains(out, "<em>loved</em>") {
		t.Error("expected markdown to be rendered")
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		file string
		want string
	}{
		{"report.html", "<!DOCTYPE html>"},
		{"report.md", "# Refinement report"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := Write(path, "task", sampleResult(), Meta{}); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(string(data), tt.want) {
				t.Errorf("expected %q prefix, got %q", tt.want, string(data))
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name  string
		draft string
		want  string
	}{
		{"atx heading", "Intro line\n\n## The *Real* Title\n\nBody", "The Real Title"},
		{"no heading", "Buy now.\nSecond line", "Buy now."},
		{"inline html", "<b>Sale</b> today\nmore", "Sale today"},
		{"html block first", "<div>\nignored\n</div>\n\nReal first line", "Real first line"},
		{"empty", "", ""},
		{"long", strings.Repeat("word ", 40), strings.TrimSpace(strings.Repeat("word ", 16)) + "…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.draft); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTML_DropsRawHTMLFromDrafts(t *testing.T) {
	res := sampleResult()
	res.Final.Content = "Fresh bread <script>alert(1)</script> daily"
	res.Trace.Steps[1].Content = `<img src=x onerror="alert(2)"> Too short.`

	page := HTML("task", res, Meta{})
	for _, bad := range []string{"<script>", "onerror", "<img"} {
		if strings.Contains(page, bad) {
			t.Errorf("report must not contain %q\n%s", bad, page)
		}
	}
	if !strings.Contains(page, "Too short.") {
		t.Error("text around the dropped markup should remain")
	}
}
