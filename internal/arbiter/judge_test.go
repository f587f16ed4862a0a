package arbiter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/valpere/redraft/internal/oracle"
	"github.com/valpere/redraft/internal/refiner"
)

func reply(text string, err error) oracle.TextOracle {
	return oracle.Func(func(context.Context, oracle.Prompt) (string, error) { return text, err })
}

func TestOracleJudge_Evaluate(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		wantScore float64
		wantErr   bool
	}{
		{"plain json", `{"score": 7.5, "reasoning": "clear"}`, 7.5, false},
		{"wrapped in prose", "Sure.\n```json\n{\"score\": 9, \"reasoning\": \"good\"}\n```", 9, false},
		{"clamped high", `{"score": 42, "reasoning": "x"}`, MaxScore, false},
		{"clamped low", `{"score": -3, "reasoning": "x"}`, 0, false},
		{"not json", "I would give it a seven", 0, true},
		{"broken json", `{"score": }`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewOracleJudge(reply(tt.response, nil))

			ev, err := j.Evaluate(context.Background(), "task", "draft")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && ev.Score != tt.wantScore {
				t.Errorf("expected score %v, got %v", tt.wantScore, ev.Score)
			}
		})
	}
}

func TestOracleJudge_Evaluate_UsesJudgePersona(t *testing.T) {
	var got oracle.Prompt
	o := oracle.Func(func(_ context.Context, p oracle.Prompt) (string, error) {
		got = p
		return `{"score": 5, "reasoning": "ok"}`, nil
	})

	if _, err := NewOracleJudge(o).Evaluate(context.Background(), "Write a tagline", "Buy now."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got.System, "impartial judge") {
		t.Errorf("expected judge persona, got %q", got.System)
	}
	if !strings.Contains(got.User, "Write a tagline") || !strings.Contains(got.User, "Buy now.") {
		t.Errorf("task or draft missing from prompt: %q", got.User)
	}
}

func TestOracleJudge_Evaluate_Errors(t *testing.T) {
	j := NewOracleJudge(reply("", errors.New("timeout")))
	if _, err := j.Evaluate(context.Background(), "task", "draft"); err == nil {
		t.Error("expected oracle error")
	}
	if _, err := j.Evaluate(context.Background(), "task", "  "); err == nil {
		t.Error("expected error for empty draft")
	}
}

func TestOracleJudge_ScoreFunc(t *testing.T) {
	j := NewOracleJudge(reply(`{"score": 8, "reasoning": "fine"}`, nil))
	score := j.ScoreFunc("task")

	got, err := score(context.Background(), refiner.Draft{Content: "draft"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 8 {
		t.Errorf("expected 8, got %v", got)
	}
}

func TestOracleJudge_ScoreFunc_StopsLoop(t *testing.T) {
	j := NewOracleJudge(reply(`{"score": 9, "reasoning": "great"}`, nil))
	critiqued := false
	crit := oracle.Func(func(context.Context, oracle.Prompt) (string, error) {
		critiqued = true
		return "needs work", nil
	})

	cfg := refiner.Config{MaxRounds: 3, Scorer: j.ScoreFunc("task"), ScoreThreshold: refiner.Threshold(8)}
	res, err := refiner.Run(context.Background(), "task",
		refiner.Oracles{Generate: reply("draft", nil), Critique: crit, Revise: reply("x", nil)}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if critiqued || res.Trace.Reason != refiner.StopScoreThreshold {
		t.Errorf("expected threshold stop before critique, got %s", res.Trace.Reason)
	}
}

func TestOracleJudge_Select(t *testing.T) {
	candidates := []Candidate{
		{Name: "writer", Draft: refiner.Draft{Content: "Buy now."}},
		{Name: "poet", Draft: refiner.Draft{Content: "Fresh bread, warm hearts."}},
	}

	t.Run("no candidates", func(t *testing.T) {
		if _, err := NewOracleJudge(reply("", nil)).Select(context.Background(), "t", nil); err == nil {
			t.Error("expected error for empty candidates")
		}
	})

	t.Run("single candidate skips oracle", func(t *testing.T) {
		j := NewOracleJudge(reply("", errors.New("must not be called")))
		sel, err := j.Select(context.Background(), "t", candidates[:1])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sel.Index != 0 || sel.Candidate.Name != "writer" {
			t.Errorf("unexpected selection %+v", sel)
		}
	})

	t.Run("judge picks second", func(t *testing.T) {
		var prompt string
		o := oracle.Func(func(_ context.Context, p oracle.Prompt) (string, error) {
			prompt = p.User
			return `{"selected": 2, "reasoning": "more vivid"}`, nil
		})
		sel, err := NewOracleJudge(o).Select(context.Background(), "t", candidates)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sel.Index != 1 || sel.Candidate.Draft.Content != "Fresh bread, warm hearts." {
			t.Errorf("unexpected selection %+v", sel)
		}
		if sel.Reasoning != "more vivid" {
			t.Errorf("unexpected reasoning %q", sel.Reasoning)
		}
		if !strings.Contains(prompt, "2. [poet]") {
			t.Errorf("candidates not numbered in prompt: %q", prompt)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		j := NewOracleJudge(reply(`{"selected": 5, "reasoning": "?"}`, nil))
		if _, err := j.Select(context.Background(), "t", candidates); err == nil {
			t.Error("expected out of range error")
		}
	})
}
