package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
)

// StepRecord is one row of the step audit log.
type StepRecord struct {
	StepID      string        `json:"step_id"`
	Region      string        `json:"region"`
	Step        string        `json:"step"`
	ProcessedAt time.Time     `json:"processed_at"`
	Created     int           `json:"created"`
	Expanded    int           `json:"expanded"`
	Merged      int           `json:"merged"`
	Invalidated int           `json:"invalidated"`
	Counts      domain.Counts `json:"counts"`
}

// StepLog appends every loaded step summary to the audit log.
// It implements pipeline.BatchLoader.
type StepLog struct {
	db *DB
}

func NewStepLog(db *DB) *StepLog {
	return &StepLog{db: db}
}

// LoadBatch inserts the summaries in one transaction. Redelivered summaries
// (same step id) are ignored.
func (l *StepLog) LoadBatch(ctx context.Context, summaries []domain.StepSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin step log tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO step_log (
			step_id, region, step, step_time, processed_at,
			created, expanded, merged, invalidated,
			active, sleeper, dead, valid, total, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (step_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare step log insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range summaries {
		body, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode summary %s: %w", s.StepID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			s.StepID, s.Region, s.T.String(), s.T.Time().UTC(), s.ProcessedAt.UTC(),
			len(s.Changes.Created), len(s.Changes.Expanded), len(s.Changes.Merged), len(s.Changes.Invalidated),
			s.Counts.Active, s.Counts.Sleeper, s.Counts.Dead, s.Counts.Valid, s.Counts.Total, string(body),
		); err != nil {
			return fmt.Errorf("insert step %s: %w", s.StepID, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit of the latest logged steps of region, newest first.
func (l *StepLog) Recent(ctx context.Context, region string, limit int) ([]StepRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT step_id, region, step, processed_at,
		       created, expanded, merged, invalidated,
		       active, sleeper, dead, valid, total
		FROM step_log
		WHERE region = ?
		ORDER BY step_time DESC
		LIMIT ?`, region, limit)
	if err != nil {
		return nil, fmt.Errorf("query step log %s: %w", region, err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var r StepRecord
		if err := rows.Scan(
			&r.StepID, &r.Region, &r.Step, &r.ProcessedAt,
			&r.Created, &r.Expanded, &r.Merged, &r.Invalidated,
			&r.Counts.Active, &r.Counts.Sleeper, &r.Counts.Dead, &r.Counts.Valid, &r.Counts.Total,
		); err != nil {
			return nil, fmt.Errorf("scan step log row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
