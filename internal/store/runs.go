package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/valpere/redraft/internal"
	"github.com/valpere/redraft/internal/refiner"
)

// RunRecord is a stored run. Steps is only filled by GetRun.
type RunRecord struct {
	ID         string
	Task       string
	Language   string
	Settings   string
	Reason     refiner.StopReason
	FinalText  string
	FinalRound int
	FinalScore *float64
	Failure    string
	CreatedAt  time.Time
	Steps      []refiner.Step
}

// RunStats summarises stored runs.
type RunStats struct {
	TotalRuns   int
	Satisfied   int
	Exhausted   int
	Failed      int
	Cancelled   int
	AvgRounds   float64
	MemoryStats *MemoryStats
}

// SaveRun stores the run and its trace in one transaction.
func (s *Store) SaveRun(ctx context.Context, req internal.RunRequest, res refiner.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var failure string
	if res.Trace.Failure != nil {
		failure = res.Trace.Failure.Error()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, task, language, settings, reason, final_text, final_round, final_score, failure, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Task, req.Language, req.Settings, string(res.Trace.Reason), res.Final.Content, res.Final.Round, nullFloat(res.Final.Score), failure, req.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for i, st := range res.Trace.Steps {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_steps (run_id, seq, kind, round, content, score, failed, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			req.ID, i, string(st.Kind), st.Round, st.Content, nullFloat(st.Score), st.Failed, st.Error)
		if err != nil {
			return fmt.Errorf("failed to save step %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetRun returns a run with its steps. Unambiguous ID prefixes are accepted.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, runSelect+` WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`, id, id+"%", id)
	if err != nil {
		return nil, err
	}
	recs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	switch {
	case len(recs) == 0:
		return nil, fmt.Errorf("run not found: %s", id)
	case len(recs) > 1 && recs[0].ID != id:
		return nil, fmt.Errorf("run id %s is ambiguous", id)
	}
	rec := &recs[0]

	stepRows, err := s.db.QueryContext(ctx,
		`SELECT kind, round, content, score, failed, error FROM run_steps WHERE run_id = ? ORDER BY seq`, rec.ID)
	if err != nil {
		return nil, err
	}
	defer stepRows.Close()

	for stepRows.Next() {
		var (
			st      refiner.Step
			kind    string
			content sql.NullString
			score   sql.NullFloat64
			errMsg  sql.NullString
		)
		if err := stepRows.Scan(&kind, &st.Round, &content, &score, &st.Failed, &errMsg); err != nil {
			return nil, err
		}
		st.Kind = refiner.StepKind(kind)
		st.Content = content.String
		st.Error = errMsg.String
		if score.Valid {
			v := score.Float64
			st.Score = &v
		}
		rec.Steps = append(rec.Steps, st)
	}
	return rec, stepRows.Err()
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := runSelect + ` ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

// DeleteRun removes a run and its steps.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_steps WHERE run_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return tx.Commit()
}

// ClearRuns removes every run and returns how many were deleted.
func (s *Store) ClearRuns(ctx context.Context) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_steps`); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats returns summary statistics for runs and the draft memory.
func (s *Store) Stats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN reason IN (?, ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reason = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reason = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reason = ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(final_round), 0)
		FROM runs`,
		string(refiner.StopMarker), string(refiner.StopScoreThreshold),
		string(refiner.StopBudgetExhausted), string(refiner.StopOracleFailure), string(refiner.StopCancelled),
	).Scan(&stats.TotalRuns, &stats.Satisfied, &stats.Exhausted, &stats.Failed, &stats.Cancelled, &stats.AvgRounds)
	if err != nil {
		return nil, err
	}

	mem, err := s.MemoryStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.MemoryStats = mem
	return stats, nil
}

const runSelect = `SELECT id, task, language, settings, reason, final_text, final_round, final_score, failure, created_at FROM runs`

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r       RunRecord
			lang    sql.NullString
			reason  string
			score   sql.NullFloat64
			failure sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Task, &lang, &r.Settings, &reason, &r.FinalText, &r.FinalRound, &score, &failure, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Language = lang.String
		r.Reason = refiner.StopReason(reason)
		r.Failure = failure.String
		if score.Valid {
			v := score.Float64
			r.FinalScore = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
