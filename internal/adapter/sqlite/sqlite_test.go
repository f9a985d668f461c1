package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tracker.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_MigratesSchema(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// A second run is a no-op.
	require.NoError(t, db.MigrateUp())

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer db.Close()

	store := NewRemapStore(db)
	ctx := context.Background()
	require.NoError(t, store.WriteRemap(ctx, 2024, "WesternUS", []domain.IDMapping{{OldID: 4, NewID: 0}}))
	got, err := store.Remaps(ctx, 2024, "WesternUS")
	require.NoError(t, err)
	assert.Equal(t, []domain.IDMapping{{OldID: 4, NewID: 0}}, got)
}

func TestRemapStore(t *testing.T) {
	store := NewRemapStore(openTestDB(t))
	ctx := context.Background()

	mapping := []domain.IDMapping{{OldID: 7, NewID: 1}, {OldID: 2, NewID: 0}, {OldID: 9, NewID: 2}}
	require.NoError(t, store.WriteRemap(ctx, 2024, "WesternUS", mapping))
	require.NoError(t, store.WriteRemap(ctx, 2024, "Alaska", []domain.IDMapping{{OldID: 3, NewID: 0}}))

	got, err := store.Remaps(ctx, 2024, "WesternUS")
	require.NoError(t, err)
	want := []domain.IDMapping{{OldID: 2, NewID: 0}, {OldID: 7, NewID: 1}, {OldID: 9, NewID: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("remap mismatch (-want +got):\n%s", diff)
	}

	// A retried compaction replaces the table.
	require.NoError(t, store.WriteRemap(ctx, 2024, "WesternUS", []domain.IDMapping{{OldID: 7, NewID: 0}}))
	got, err = store.Remaps(ctx, 2024, "WesternUS")
	require.NoError(t, err)
	assert.Equal(t, []domain.IDMapping{{OldID: 7, NewID: 0}}, got)

	got, err = store.Remaps(ctx, 2025, "WesternUS")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemapStore_DuplicateNewIDRollsBack(t *testing.T) {
	store := NewRemapStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.WriteRemap(ctx, 2024, "WesternUS", []domain.IDMapping{{OldID: 1, NewID: 0}}))
	err := store.WriteRemap(ctx, 2024, "WesternUS", []domain.IDMapping{{OldID: 5, NewID: 0}, {OldID: 6, NewID: 0}})
	require.Error(t, err)

	got, err := store.Remaps(ctx, 2024, "WesternUS")
	require.NoError(t, err)
	assert.Equal(t, []domain.IDMapping{{OldID: 1, NewID: 0}}, got)
}

func summaryAt(id string, t firetime.TimeStep, created ...int) domain.StepSummary {
	return domain.StepSummary{
		StepID:      id,
		Region:      "WesternUS",
		T:           t,
		ProcessedAt: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC),
		Changes:     domain.Changes{Created: created},
		Counts:      domain.Counts{Active: len(created), Valid: len(created), Total: len(created)},
	}
}

func TestStepLog(t *testing.T) {
	log := NewStepLog(openTestDB(t))
	ctx := context.Background()

	am := firetime.TimeStep{Year: 2023, Month: 8, Day: 1, AMPM: firetime.AM}
	first := summaryAt("step-1", am, 0, 1)
	second := summaryAt("step-2", am.Next(), 2)
	require.NoError(t, log.LoadBatch(ctx, []domain.StepSummary{first, second}))

	// Redelivery of an already logged step is ignored.
	require.NoError(t, log.LoadBatch(ctx, []domain.StepSummary{second}))
	require.NoError(t, log.LoadBatch(ctx, nil))

	recent, err := log.Recent(ctx, "WesternUS", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "step-2", recent[0].StepID)
	assert.Equal(t, "2023-08-01 PM", recent[0].Step)
	assert.Equal(t, 1, recent[0].Created)
	assert.Equal(t, "step-1", recent[1].StepID)
	assert.Equal(t, domain.Counts{Active: 2, Valid: 2, Total: 2}, recent[1].Counts)
	assert.True(t, first.ProcessedAt.Equal(recent[1].ProcessedAt))

	recent, err = log.Recent(ctx, "WesternUS", 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	recent, err = log.Recent(ctx, "Alaska", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
