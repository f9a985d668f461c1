package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
)

// FanOut writes every batch to each loader in order, stopping at the first failure.
type FanOut []BatchLoader

func (f FanOut) LoadBatch(ctx context.Context, summaries []domain.StepSummary) error {
	for i, l := range f {
		if err := l.LoadBatch(ctx, summaries); err != nil {
			return fmt.Errorf("loader %d: %w", i, err)
		}
	}
	return nil
}
