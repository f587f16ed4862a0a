// Package arbiter grades drafts with an LLM judge and picks the best of
// several finished drafts.
package arbiter

import (
	"context"

	"github.com/valpere/redraft/internal/refiner"
)

// MaxScore is the top of the judge's grading scale.
const MaxScore = 10.0

// Evaluation is the judge's verdict on one draft.
type Evaluation struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Candidate is one finished draft competing in Select.
type Candidate struct {
	Name  string
	Draft refiner.Draft
}

// Selection is the outcome of Select.
type Selection struct {
	Index     int
	Candidate Candidate
	Reasoning string
}

// Arbiter grades single drafts and chooses among several.
type Arbiter interface {
	Evaluate(ctx context.Context, task, content string) (*Evaluation, error)
	Select(ctx context.Context, task string, candidates []Candidate) (*Selection, error)
}
