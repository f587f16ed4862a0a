package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// maxFuzzyRunes bounds the quadratic edit distance cost.
const maxFuzzyRunes = 1000

// MemoryEntry is a row from the draft_memory table.
type MemoryEntry struct {
	ID          string
	Task        string
	Settings    string
	FinalText   string
	RunID       string
	UsageCount  int
	Invalidated bool
	LastUsed    time.Time
}

// MemoryStats summarises draft memory usage.
type MemoryStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

// GetCachedDraft returns the remembered final draft for task under the
// given settings key.
func (s *Store) GetCachedDraft(ctx context.Context, task, settings string) (string, bool, error) {
	var finalText string
	var invalidated bool

	key := normalizeText(task)
	err := s.db.QueryRowContext(ctx,
		`SELECT final_text, invalidated FROM draft_memory WHERE task = ? AND settings = ?`,
		key, settings).Scan(&finalText, &invalidated)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE draft_memory SET usage_count = usage_count + 1, last_used = ? WHERE task = ? AND settings = ?`,
		time.Now(), key, settings)

	return finalText, true, err
}

// FuzzyGetCachedDraft returns a remembered draft whose normalized task has
// at least threshold similarity (0-1) to task. threshold <= 0 disables the
// lookup.
func (s *Store) FuzzyGetCachedDraft(ctx context.Context, task, settings string, threshold float64) (string, bool, error) {
	if threshold <= 0 {
		return "", false, nil
	}

	normalized := normalizeText(task)
	n := len([]rune(normalized))
	if n > maxFuzzyRunes {
		return "", false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT task, final_text FROM draft_memory WHERE settings = ? AND NOT invalidated`,
		settings)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	var bestFinal string
	bestScore := 0.0

	for rows.Next() {
		var stored, finalText string
		if err := rows.Scan(&stored, &finalText); err != nil {
			return "", false, err
		}

		// The length difference alone may already rule the row out.
		m := len([]rune(stored))
		if maxL := max(n, m); maxL > 0 && 1.0-float64(abs(n-m))/float64(maxL) < threshold {
			continue
		}

		score := similarity(normalized, stored)
		if score >= threshold && score > bestScore {
			bestScore = score
			bestFinal = finalText
		}
	}
	if err := rows.Err(); err != nil {
		return "", false, err
	}

	if bestFinal != "" {
		return bestFinal, true, nil
	}
	return "", false, nil
}

// SaveToMemory remembers finalText as the answer to task under settings,
// replacing any earlier entry.
func (s *Store) SaveToMemory(ctx context.Context, task, settings, finalText, runID string) error {
	id := fmt.Sprintf("mem_%d", time.Now().UnixNano())
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO draft_memory (id, task, settings, final_text, run_id, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		id, normalizeText(task), settings, finalText, runID, now, now)
	return err
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE draft_memory SET invalidated = TRUE WHERE id = ?`, id)
	return err
}

// DeleteMemory permanently removes a draft memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM draft_memory WHERE id = ?`, id)
	return err
}

// ClearMemory removes all draft memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM draft_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, settings, final_text, run_id, usage_count, invalidated, last_used FROM draft_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		var runID sql.NullString
		if err := rows.Scan(&e.ID, &e.Task, &e.Settings, &e.FinalText, &runID, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		e.RunID = runID.String
		results = append(results, e)
	}

	return results, rows.Err()
}

func (s *Store) MemoryStats(ctx context.Context) (*MemoryStats, error) {
	stats := &MemoryStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM draft_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
