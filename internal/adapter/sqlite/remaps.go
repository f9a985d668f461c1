package sqlite

import (
	"context"
	"fmt"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
)

// RemapStore records the old→new fire id table of each annual compaction.
// It implements domain.RemapWriter.
type RemapStore struct {
	db *DB
}

func NewRemapStore(db *DB) *RemapStore {
	return &RemapStore{db: db}
}

// WriteRemap replaces the remap of (year, region) in one transaction, so a
// retried compaction leaves exactly one table.
func (s *RemapStore) WriteRemap(ctx context.Context, year int, region string, mapping []domain.IDMapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remap tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fire_id_remaps WHERE year = ? AND region = ?`, year, region); err != nil {
		return fmt.Errorf("clear remap %s/%d: %w", region, year, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fire_id_remaps (year, region, old_id, new_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare remap insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range mapping {
		if _, err := stmt.ExecContext(ctx, year, region, m.OldID, m.NewID); err != nil {
			return fmt.Errorf("insert remap %s/%d %d→%d: %w", region, year, m.OldID, m.NewID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remap %s/%d: %w", region, year, err)
	}
	s.db.logger.Info("fire id remap persisted", "region", region, "year", year, "fires", len(mapping))
	return nil
}

// Remaps returns the remap of (year, region) ordered by new id.
func (s *RemapStore) Remaps(ctx context.Context, year int, region string) ([]domain.IDMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT old_id, new_id FROM fire_id_remaps WHERE year = ? AND region = ? ORDER BY new_id`,
		year, region)
	if err != nil {
		return nil, fmt.Errorf("query remap %s/%d: %w", region, year, err)
	}
	defer rows.Close()

	var out []domain.IDMapping
	for rows.Next() {
		var m domain.IDMapping
		if err := rows.Scan(&m.OldID, &m.NewID); err != nil {
			return nil, fmt.Errorf("scan remap row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
