package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchCheckpoint is a batch job's checkpoint record.
type BatchCheckpoint struct {
	ID         string
	InputFile  string
	OutputFile string
	Status     string
	CreatedAt  time.Time
}

// BatchRow is a finished row of a batch job.
type BatchRow struct {
	FinalText string
	Reason    string
	Rounds    int
}

// CreateBatchCheckpoint creates a new checkpoint record and returns its ID.
func (s *Store) CreateBatchCheckpoint(ctx context.Context, inputFile, outputFile string) (string, error) {
	id := "cp_" + uuid.NewString()
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batch_checkpoints (id, input_file, output_file, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, inputFile, outputFile, now, now)
	return id, err
}

// GetBatchCheckpoint retrieves a checkpoint by ID.
func (s *Store) GetBatchCheckpoint(ctx context.Context, checkpointID string) (*BatchCheckpoint, error) {
	var cp BatchCheckpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input_file, output_file, status, created_at FROM batch_checkpoints WHERE id = ?`,
		checkpointID).Scan(&cp.ID, &cp.InputFile, &cp.OutputFile, &cp.Status, &cp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkpoint not found: %s", checkpointID)
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// SaveBatchRow persists the outcome of a single batch row.
func (s *Store) SaveBatchRow(ctx context.Context, checkpointID string, rowIdx int, row BatchRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO batch_checkpoint_rows (checkpoint_id, row_idx, final_text, reason, rounds) VALUES (?, ?, ?, ?, ?)`,
		checkpointID, rowIdx, row.FinalText, row.Reason, row.Rounds)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE batch_checkpoints SET updated_at = ? WHERE id = ?`, time.Now(), checkpointID)
	return err
}

// GetBatchRows returns all finished rows of a checkpoint keyed by row index.
func (s *Store) GetBatchRows(ctx context.Context, checkpointID string) (map[int]BatchRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT row_idx, final_text, reason, rounds FROM batch_checkpoint_rows WHERE checkpoint_id = ?`,
		checkpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[int]BatchRow)
	for rows.Next() {
		var idx int
		var r BatchRow
		if err := rows.Scan(&idx, &r.FinalText, &r.Reason, &r.Rounds); err != nil {
			return nil, err
		}
		done[idx] = r
	}
	return done, rows.Err()
}

// CompleteBatchCheckpoint marks a checkpoint as completed.
func (s *Store) CompleteBatchCheckpoint(ctx context.Context, checkpointID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE batch_checkpoints SET status = 'completed', updated_at = ? WHERE id = ?`,
		time.Now(), checkpointID)
	return err
}
