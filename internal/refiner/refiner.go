// Package refiner runs the bounded generate, critique and revise loop.
// Oracles are passed in by the caller; the package keeps no state between
// runs.
package refiner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valpere/redraft/internal/markup"
	"github.com/valpere/redraft/internal/oracle"
)

// Run produces a draft for task and improves it until a stop rule fires or
// cfg.MaxRounds critique/revise pairs have been spent.
//
// Configuration problems are reported as *ConfigurationError before any
// oracle is called. Oracle failures end the run with Reason
// StopOracleFailure; whether the *OracleFailure is also returned depends
// on cfg.OnFailure.
//
// Result.Final is the latest draft when a stop rule or the budget ends the
// run. A cancelled or failed run returns the best draft so far instead
// (see RunTrace.Best).
func Run(ctx context.Context, task string, oracles Oracles, cfg Config) (Result, error) {
	if err := validate(task, oracles, cfg); err != nil {
		return Result{}, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	r := &run{ctx: ctx, task: task, oracles: oracles, cfg: cfg, log: log}
	return r.loop()
}

func validate(task string, o Oracles, cfg Config) error {
	switch {
	case strings.TrimSpace(task) == "":
		return &ConfigurationError{Field: "task", Reason: "must not be empty"}
	case cfg.MaxRounds < 0:
		return &ConfigurationError{Field: "max_rounds", Reason: fmt.Sprintf("must be >= 0, got %d", cfg.MaxRounds)}
	case o.Generate == nil:
		return &ConfigurationError{Field: "generate", Reason: "oracle is required"}
	case o.Critique == nil:
		return &ConfigurationError{Field: "critique", Reason: "oracle is required"}
	case o.Revise == nil:
		return &ConfigurationError{Field: "revise", Reason: "oracle is required"}
	case cfg.ScoreThreshold != nil && cfg.Scorer == nil:
		return &ConfigurationError{Field: "score_threshold", Reason: "requires a scorer"}
	}
	for _, m := range cfg.StopMarkers {
		if strings.TrimSpace(m) == "" {
			return &ConfigurationError{Field: "stop_markers", Reason: "must not contain empty markers"}
		}
	}
	return nil
}

type run struct {
	ctx     context.Context
	task    string
	oracles Oracles
	cfg     Config
	log     *slog.Logger
	trace   RunTrace
}

func (r *run) loop() (Result, error) {
	draft, err := r.generate()
	if err != nil {
		return r.fail(err)
	}

	for draft.Round < r.cfg.MaxRounds {
		if r.ctx.Err() != nil {
			return r.stop(StopCancelled)
		}

		if r.cfg.Scorer != nil {
			score, err := r.score(draft.Round)
			if err != nil {
				return r.fail(err)
			}
			if t := r.cfg.ScoreThreshold; t != nil && score >= *t {
				return r.stop(StopScoreThreshold)
			}
		}

		crit, err := r.critique(draft)
		if err != nil {
			return r.fail(err)
		}
		if marker, ok := containsMarker(crit.Content, r.cfg.StopMarkers); ok {
			r.log.Debug("stop marker found", "round", draft.Round, "marker", marker)
			return r.stop(StopMarker)
		}

		draft, err = r.revise(draft, crit)
		if err != nil {
			return r.fail(err)
		}
	}

	if r.cfg.Scorer != nil && draft.Score == nil {
		if _, err := r.score(draft.Round); err != nil {
			return r.fail(err)
		}
	}
	return r.stop(StopBudgetExhausted)
}

func (r *run) generate() (Draft, error) {
	r.log.Debug("generating draft")
	out, err := r.call(r.oracles.Generate, generatePrompt(r.task, r.cfg))
	if err != nil {
		return Draft{}, r.stepFailed(StepGenerate, 0, err)
	}
	d := Draft{Content: out, Round: 0}
	r.trace.Drafts = append(r.trace.Drafts, d)
	r.trace.Steps = append(r.trace.Steps, Step{Kind: StepGenerate, Round: 0, Content: out})
	return d, nil
}

// score rates the latest draft and annotates it in the trace.
func (r *run) score(round int) (float64, error) {
	last := len(r.trace.Drafts) - 1
	s, err := r.cfg.Scorer(r.ctx, r.trace.Drafts[last])
	if err != nil {
		return 0, r.stepFailed(StepScore, round, err)
	}
	r.log.Debug("draft scored", "round", round, "score", s)
	r.trace.Drafts[last].Score = &s
	r.trace.Steps = append(r.trace.Steps, Step{Kind: StepScore, Round: round, Score: &s})
	return s, nil
}

func (r *run) critique(d Draft) (Critique, error) {
	r.log.Debug("critiquing draft", "round", d.Round)
	out, err := r.call(r.oracles.Critique, critiquePrompt(r.task, d, r.cfg))
	if err != nil {
		return Critique{}, r.stepFailed(StepCritique, d.Round, err)
	}
	c := Critique{Round: d.Round, Content: out}
	r.trace.Critiques = append(r.trace.Critiques, c)
	r.trace.Steps = append(r.trace.Steps, Step{Kind: StepCritique, Round: d.Round, Content: out})
	return c, nil
}

func (r *run) revise(d Draft, c Critique) (Draft, error) {
	next := d.Round + 1
	r.log.Debug("revising draft", "round", next)

	text := d.Content
	var shield *markup.Shield
	if r.cfg.ProtectMarkup {
		if s := markup.Protect(text); s.Len() > 0 {
			shield, text = s, s.Text
		}
	}

	out, err := r.call(r.oracles.Revise, revisePrompt(r.task, text, next, c, r.cfg, shield != nil))
	if err == nil && shield != nil {
		if missing := shield.Missing(out); len(missing) > 0 {
			err = fmt.Errorf("revision dropped %d protected fragment(s)", len(missing))
		} else {
			out = shield.Restore(out)
		}
	}
	if err != nil {
		return Draft{}, r.stepFailed(StepRevise, next, err)
	}

	nd := Draft{Content: out, Round: next}
	r.trace.Drafts = append(r.trace.Drafts, nd)
	r.trace.Steps = append(r.trace.Steps, Step{Kind: StepRevise, Round: next, Content: out})
	return nd, nil
}

func (r *run) call(o oracle.TextOracle, p oracle.Prompt) (string, error) {
	out, err := o.Complete(r.ctx, p)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// stepFailed records the failed step and wraps err for the caller.
func (r *run) stepFailed(stage StepKind, round int, err error) error {
	r.trace.Steps = append(r.trace.Steps, Step{
		Kind:   stage,
		Round:  round,
		Failed: true,
		Error:  err.Error(),
	})
	return &OracleFailure{Stage: stage, Round: round, Err: err}
}

func (r *run) fail(err error) (Result, error) {
	// An oracle interrupted by the caller's context is a cancellation, not
	// a provider failure.
	if r.ctx.Err() != nil {
		return r.stop(StopCancelled)
	}

	r.trace.Reason = StopOracleFailure
	r.trace.Failure = err
	r.log.Warn("refinement aborted", "error", err, "policy", r.cfg.OnFailure.String())

	res := r.partial()
	if r.cfg.OnFailure == Propagate {
		return res, err
	}
	return res, nil
}

func (r *run) stop(reason StopReason) (Result, error) {
	r.trace.Reason = reason
	res := r.result()
	if reason == StopCancelled {
		res = r.partial()
	}
	r.log.Info("refinement stopped", "reason", string(reason), "round", res.Final.Round, "drafts", len(r.trace.Drafts))
	return res, nil
}

// result returns the latest draft. A run that ended normally has applied
// every critique it asked for, so the newest revision is the answer.
func (r *run) result() Result {
	final, _ := r.trace.Last()
	return Result{Final: final, Trace: r.trace}
}

// partial returns the best draft so far for a run that was cut short by
// cancellation or an oracle failure: the highest-scored draft when a
// scorer ran, otherwise the latest draft.
func (r *run) partial() Result {
	final, _ := r.trace.Best()
	return Result{Final: final, Trace: r.trace}
}

func containsMarker(text string, markers []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return m, true
		}
	}
	return "", false
}
