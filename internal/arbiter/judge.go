package arbiter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valpere/redraft/internal/oracle"
	"github.com/valpere/redraft/internal/refiner"
)

// OracleJudge implements Arbiter on top of any TextOracle.
type OracleJudge struct {
	oracle oracle.TextOracle
}

func NewOracleJudge(o oracle.TextOracle) *OracleJudge {
	return &OracleJudge{oracle: oracle.Persona(oracle.RoleJudge, o)}
}

func (j *OracleJudge) Evaluate(ctx context.Context, task, content string) (*Evaluation, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("nothing to evaluate")
	}

	resp, err := j.oracle.Complete(ctx, oracle.Prompt{
		System: fmt.Sprintf(`Grade the draft from 0 to %.0f for how well it fulfils the task.
Respond ONLY in JSON:
{"score": <number>, "reasoning": "..."}`, MaxScore),
		User: fmt.Sprintf("Task:\n%s\n\nDraft:\n%s", task, content),
	})
	if err != nil {
		return nil, fmt.Errorf("judge request failed: %w", err)
	}

	var parsed Evaluation
	if err := decodeJSON(resp, &parsed); err != nil {
		return nil, err
	}
	parsed.Score = clamp(parsed.Score)
	return &parsed, nil
}

// ScoreFunc adapts Evaluate to the loop's scorer for one task.
func (j *OracleJudge) ScoreFunc(task string) refiner.ScoreFunc {
	return func(ctx context.Context, d refiner.Draft) (float64, error) {
		ev, err := j.Evaluate(ctx, task, d.Content)
		if err != nil {
			return 0, err
		}
		return ev.Score, nil
	}
}

func (j *OracleJudge) Select(ctx context.Context, task string, candidates []Candidate) (*Selection, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to evaluate")
	}
	if len(candidates) == 1 {
		return &Selection{Index: 0, Candidate: candidates[0], Reasoning: "Only one candidate available"}, nil
	}

	resp, err := j.oracle.Complete(ctx, oracle.Prompt{
		System: `Compare the numbered drafts and select the one that best fulfils the task.
Respond ONLY in JSON:
{"selected": <number>, "reasoning": "..."}`,
		User: buildSelectPrompt(task, candidates),
	})
	if err != nil {
		return nil, fmt.Errorf("judge request failed: %w", err)
	}

	var parsed struct {
		Selected  int    `json:"selected"`
		Reasoning string `json:"reasoning"`
	}
	if err := decodeJSON(resp, &parsed); err != nil {
		return nil, err
	}
	if parsed.Selected < 1 || parsed.Selected > len(candidates) {
		return nil, fmt.Errorf("judge selected %d, want 1..%d", parsed.Selected, len(candidates))
	}

	idx := parsed.Selected - 1
	return &Selection{Index: idx, Candidate: candidates[idx], Reasoning: parsed.Reasoning}, nil
}

func buildSelectPrompt(task string, candidates []Candidate) string {
	var sb strings.Builder
	sb.WriteString("Task:\n")
	sb.WriteString(task)
	sb.WriteString("\n\nDrafts:\n")
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. [%s]:\n%s\n\n", i+1, c.Name, c.Draft.Content)
	}
	return sb.String()
}

// decodeJSON parses the first JSON object in resp. Models often wrap the
// object in prose or a code fence.
func decodeJSON(resp string, v any) error {
	resp = strings.TrimSpace(resp)
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end < start {
		return fmt.Errorf("judge response has no JSON object: %q", resp)
	}
	if err := json.Unmarshal([]byte(resp[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse judge response as JSON: %w", err)
	}
	return nil
}

func clamp(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > MaxScore:
		return MaxScore
	}
	return s
}
