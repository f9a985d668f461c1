package pipeline

import (
	"context"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
)

// StepApplier applies a decoded step batch to tracker state.
type StepApplier interface {
	Apply(ctx context.Context, b domain.StepBatch) (domain.StepSummary, error)
}

// StepTransformer implements Transformer by decoding raw step batches and
// applying them to a tracker.
type StepTransformer struct {
	tracker StepApplier
}

// NewTransformer creates a StepTransformer backed by tracker.
func NewTransformer(tracker StepApplier) *StepTransformer {
	return &StepTransformer{tracker: tracker}
}

func (t *StepTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.StepSummary, error) {
	batch, err := domain.ParseStepBatch(raw)
	if err != nil {
		return domain.StepSummary{}, err
	}
	return t.tracker.Apply(ctx, batch)
}
