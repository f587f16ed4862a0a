package refiner

import (
	"context"
	"log/slog"
	"sort"

	"github.com/valpere/redraft/internal/oracle"
)

// DefaultMaxRounds is the critique/revise budget used when none is given.
const DefaultMaxRounds = 3

// Draft is one version of the produced text. Round 0 is the first draft;
// every revision is a new Draft with the next round number.
type Draft struct {
	Content string   `json:"content"`
	Round   int      `json:"round"`
	Score   *float64 `json:"score,omitempty"`
}

// Critique is the evaluation of the draft with the same Round.
type Critique struct {
	Round   int    `json:"round"`
	Content string `json:"content"`
}

// Criteria maps a criterion name to a description of what satisfies it.
type Criteria map[string]string

// Names returns the criterion names in sorted order.
func (c Criteria) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScoreFunc estimates the quality of a draft. The scale is up to the caller.
type ScoreFunc func(ctx context.Context, d Draft) (float64, error)

// FailurePolicy decides what Run does when an oracle fails.
type FailurePolicy int

const (
	// Abort stops the loop and returns the last good draft with the failure
	// recorded in the trace. Run returns a nil error.
	Abort FailurePolicy = iota
	// Propagate stops the loop the same way and also returns the failure.
	Propagate
)

func (p FailurePolicy) String() string {
	if p == Propagate {
		return "propagate"
	}
	return "abort"
}

// StopReason says why a run ended.
type StopReason string

const (
	StopBudgetExhausted StopReason = "budget_exhausted"
	StopMarker          StopReason = "stop_marker"
	StopScoreThreshold  StopReason = "score_threshold"
	StopCancelled       StopReason = "cancelled"
	StopOracleFailure   StopReason = "oracle_failure"
)

// Satisfied reports whether the run ended because the draft was judged good
// enough, as opposed to running out of budget or failing.
func (r StopReason) Satisfied() bool {
	return r == StopMarker || r == StopScoreThreshold
}

// StepKind names a stage of the loop.
type StepKind string

const (
	StepGenerate StepKind = "generate"
	StepScore    StepKind = "score"
	StepCritique StepKind = "critique"
	StepRevise   StepKind = "revise"
)

// Step is one entry of the ordered run log.
type Step struct {
	Kind    StepKind `json:"kind"`
	Round   int      `json:"round"`
	Content string   `json:"content,omitempty"`
	Score   *float64 `json:"score,omitempty"`
	Failed  bool     `json:"failed,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// RunTrace records everything one run produced, in order.
type RunTrace struct {
	Drafts    []Draft    `json:"drafts"`
	Critiques []Critique `json:"critiques"`
	Steps     []Step     `json:"steps"`
	Reason    StopReason `json:"reason"`
	Failure   error      `json:"-"`
}

// Failed reports whether the run ended on an oracle failure.
func (t RunTrace) Failed() bool {
	return t.Failure != nil
}

// Last returns the most recent draft, if any.
func (t RunTrace) Last() (Draft, bool) {
	if len(t.Drafts) == 0 {
		return Draft{}, false
	}
	return t.Drafts[len(t.Drafts)-1], true
}

// Best returns the highest-scored draft, falling back to the last draft
// when no draft carries a score. Ties go to the later draft.
func (t RunTrace) Best() (Draft, bool) {
	best, ok := t.Last()
	if !ok {
		return Draft{}, false
	}
	var bestScore *float64
	for _, d := range t.Drafts {
		if d.Score == nil {
			continue
		}
		if bestScore == nil || *d.Score >= *bestScore {
			best, bestScore = d, d.Score
		}
	}
	return best, true
}

// Oracles are the three uses of the text capability.
type Oracles struct {
	Generate oracle.TextOracle
	Critique oracle.TextOracle
	Revise   oracle.TextOracle
}

// Same returns Oracles that use o for every stage.
func Same(o oracle.TextOracle) Oracles {
	return Oracles{Generate: o, Critique: o, Revise: o}
}

// Config controls one run.
type Config struct {
	// MaxRounds is the hard ceiling on critique/revise pairs.
	MaxRounds int
	// ScoreThreshold stops the loop once Scorer rates a draft at or above it.
	ScoreThreshold *float64
	// StopMarkers are matched case-insensitively against each critique.
	StopMarkers []string
	Criteria    Criteria
	Scorer      ScoreFunc
	OnFailure   FailurePolicy
	// ProtectMarkup shields code and HTML in the draft during revision.
	ProtectMarkup bool
	// Language is the ISO 639-1 code drafts should be written in, if known.
	Language string
	Logger   *slog.Logger
}

// DefaultConfig returns the settings used by the CLI when nothing else is set.
func DefaultConfig() Config {
	return Config{
		MaxRounds:   DefaultMaxRounds,
		StopMarkers: []string{"no improvements needed", "no further improvement needed"},
		OnFailure:   Abort,
	}
}

// Threshold is a helper for filling Config.ScoreThreshold.
func Threshold(v float64) *float64 {
	return &v
}

// Result is what Run returns.
type Result struct {
	Final Draft    `json:"final"`
	Trace RunTrace `json:"trace"`
}
