package pipeline_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
	"github.com/couchcryptid/wildfire-tracker/internal/pipeline"
	"github.com/couchcryptid/wildfire-tracker/internal/tracker"
)

func TestStepTransformer_WithMockJSONData(t *testing.T) {
	tr, err := tracker.New(domain.Env{Params: domain.DefaultParams()}, newTestMetrics(), slog.Default())
	require.NoError(t, err)
	transformer := pipeline.NewTransformer(tr)

	batches := readMockBatches(t)
	require.Len(t, batches, 4)

	summaries := make([]domain.StepSummary, 0, len(batches))
	for _, raw := range batches {
		out, err := transformer.Transform(context.Background(), raw)
		require.NoError(t, err)
		summaries = append(summaries, out)

		event, err := domain.SerializeStepSummary(out)
		require.NoError(t, err)
		assert.Equal(t, []byte("WesternUS"), event.Key)
		assert.Equal(t, out.T.String(), event.Headers["step"])
	}

	t.Run("ignition", func(t *testing.T) {
		s := summaries[0]
		assert.Equal(t, []int{0, 1}, s.Changes.Created)
		for _, rec := range s.Fires {
			assert.Equal(t, domain.StateGrowing, rec.State)
			assert.Equal(t, 3, rec.Pixels)
			require.NotNil(t, rec.Ignition)
		}
	})

	t.Run("growth", func(t *testing.T) {
		s := summaries[1]
		assert.Equal(t, []int{0, 1}, s.Changes.Expanded)
		for i, rec := range s.Fires {
			assert.Equal(t, domain.StateActive, rec.State)
			assert.Greater(t, rec.AreaKm2, summaries[0].Fires[i].AreaKm2)
			assert.Greater(t, rec.FireLineKm, 0.0)
		}
	})

	t.Run("merge", func(t *testing.T) {
		s := summaries[2]
		assert.Equal(t, []int{0}, s.Changes.Merged)
		assert.Equal(t, []int{1}, s.Changes.Invalidated)
		require.Len(t, s.Heritages, 1)
		assert.Equal(t, domain.Heritage{Source: 1, Target: 0, T: s.T}, s.Heritages[0])
		assert.Equal(t, 12, s.Fires[0].Pixels)
	})

	t.Run("redirect and new ignition", func(t *testing.T) {
		s := summaries[3]
		assert.Equal(t, []int{0}, s.Changes.Expanded)
		assert.Equal(t, []int{2}, s.Changes.Created)
		assert.Equal(t, domain.Counts{Active: 2, Dead: 1, Valid: 2, Total: 3}, s.Counts)
	})
}

func readMockBatches(t *testing.T) []domain.RawEvent {
	t.Helper()

	path := filepath.Join("..", "..", "data", "mock", "wildfire_steps_western_us.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &rows))

	events := make([]domain.RawEvent, len(rows))
	for i, row := range rows {
		events[i] = domain.RawEvent{
			Key:   []byte("WesternUS"),
			Value: row,
			Topic: "fire-step-batches",
		}
	}
	return events
}
