package landcover

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/wildfire-tracker/internal/domain"
)

var errNoIgnition = errors.New("fire has no ignition pixels")

// Classifier implements domain.Classifier from the land cover at a fire's
// ignition centre, refined by its duration and area.
type Classifier struct {
	lookup Looker
}

func NewClassifier(lookup Looker) *Classifier {
	return &Classifier{lookup: lookup}
}

func (c *Classifier) Classify(ctx context.Context, f *domain.Fire) (domain.FireType, error) {
	_, geo, ok := f.IgnitionCenter()
	if !ok {
		return domain.FireTypeOther, fmt.Errorf("classify fire %d: %w", f.ID(), errNoIgnition)
	}
	lc, err := c.lookup.Lookup(ctx, geo.Lat, geo.Lon)
	if err != nil {
		return domain.FireTypeOther, fmt.Errorf("classify fire %d: %w", f.ID(), err)
	}
	return domain.FireTypeFor(lc.Class, f.Duration(), f.Area()), nil
}
