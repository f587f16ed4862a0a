package store

import (
	"context"
	"fmt"
	"time"
)

// CriteriaSetInfo describes a stored criteria set.
type CriteriaSetInfo struct {
	Name  string
	Count int
}

// SaveCriteriaSet stores criteria under name, replacing any previous set of
// the same name.
func (s *Store) SaveCriteriaSet(ctx context.Context, name string, criteria map[string]string) error {
	if name == "" {
		return fmt.Errorf("criteria set name is required")
	}
	if len(criteria) == 0 {
		return fmt.Errorf("criteria set %s is empty", name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM criteria_sets WHERE set_name = ?`, name); err != nil {
		return err
	}
	now := time.Now()
	for criterion, desc := range criteria {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO criteria_sets (set_name, criterion, description, created_at) VALUES (?, ?, ?, ?)`,
			name, criterion, desc, now)
		if err != nil {
			return fmt.Errorf("failed to save criterion %s: %w", criterion, err)
		}
	}
	return tx.Commit()
}

// GetCriteriaSet returns the criteria stored under name as a
// criterion → description map, ready to pass to the loop.
func (s *Store) GetCriteriaSet(ctx context.Context, name string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT criterion, description FROM criteria_sets WHERE set_name = ?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	criteria := make(map[string]string)
	for rows.Next() {
		var c, d string
		if err := rows.Scan(&c, &d); err != nil {
			return nil, err
		}
		criteria[c] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(criteria) == 0 {
		return nil, fmt.Errorf("criteria set not found: %s", name)
	}
	return criteria, nil
}

func (s *Store) ListCriteriaSets(ctx context.Context) ([]CriteriaSetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT set_name, COUNT(*) FROM criteria_sets GROUP BY set_name ORDER BY set_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []CriteriaSetInfo
	for rows.Next() {
		var info CriteriaSetInfo
		if err := rows.Scan(&info.Name, &info.Count); err != nil {
			return nil, err
		}
		sets = append(sets, info)
	}
	return sets, rows.Err()
}

func (s *Store) DeleteCriteriaSet(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM criteria_sets WHERE set_name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("criteria set not found: %s", name)
	}
	return nil
}
