// Package store persists runs, the draft memory, criteria sets and batch
// checkpoints in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		language TEXT,
		settings TEXT NOT NULL,
		reason TEXT NOT NULL,
		final_text TEXT NOT NULL,
		final_round INTEGER NOT NULL,
		final_score REAL,
		failure TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- run_steps keeps the ordered trace of each run
	CREATE TABLE IF NOT EXISTS run_steps (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		round INTEGER NOT NULL,
		content TEXT,
		score REAL,
		failed BOOLEAN DEFAULT FALSE,
		error TEXT,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	-- draft_memory returns a finished draft for a task seen before with the same settings
	CREATE TABLE IF NOT EXISTS draft_memory (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		settings TEXT NOT NULL,
		final_text TEXT NOT NULL,
		run_id TEXT,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(task, settings)
	);

	-- criteria_sets stores named criteria reused across runs
	CREATE TABLE IF NOT EXISTS criteria_sets (
		set_name TEXT NOT NULL,
		criterion TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (set_name, criterion)
	);

	-- batch_checkpoints tracks progress of batch jobs for resume support
	CREATE TABLE IF NOT EXISTS batch_checkpoints (
		id TEXT PRIMARY KEY,
		input_file TEXT NOT NULL,
		output_file TEXT NOT NULL,
		status TEXT DEFAULT 'running',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS batch_checkpoint_rows (
		checkpoint_id TEXT NOT NULL,
		row_idx INTEGER NOT NULL,
		final_text TEXT NOT NULL,
		reason TEXT NOT NULL,
		rounds INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (checkpoint_id, row_idx),
		FOREIGN KEY (checkpoint_id) REFERENCES batch_checkpoints(id)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON draft_memory(task, settings);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_checkpoint_rows ON batch_checkpoint_rows(checkpoint_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// levenshtein returns the rune-aware edit distance between two strings
// using two rows of the DP table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = min(prev[j], prev[j-1], curr[j-1]) + 1
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// similarity returns a score in [0, 1] where 1 means identical.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}
