package domain

import (
	"context"
	"encoding/json"
)

// FireType is the fuel/land-use category of a fire.
type FireType int

const (
	FireTypeOther FireType = iota
	FireTypeUrban
	FireTypeForestWild
	FireTypeForestManaged
	FireTypeShrubWild
	FireTypeShrubManaged
	FireTypeAgriculture
)

var fireTypeNames = map[FireType]string{
	FireTypeOther:         "Other",
	FireTypeUrban:         "Urban",
	FireTypeForestWild:    "Forest wild",
	FireTypeForestManaged: "Forest manage",
	FireTypeShrubWild:     "Shrub wild",
	FireTypeShrubManaged:  "Shrub manage",
	FireTypeAgriculture:   "Agriculture",
}

// String returns the display name of the category.
func (t FireType) String() string {
	if name, ok := fireTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

func (t FireType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Classifier assigns a fire to a fuel/land-use category.
type Classifier interface {
	Classify(ctx context.Context, f *Fire) (FireType, error)
}

// LandCover is a coarse land-cover class at a location.
type LandCover int

const (
	LandCoverOther LandCover = iota
	LandCoverUrban
	LandCoverForest
	LandCoverShrub
	LandCoverAgriculture
)

// Prescribed burns are short and small. Without fuel-moisture data, a forest or
// shrub fire under both limits is treated as managed.
const (
	managedMaxDays    = 2.0
	managedMaxAreaKm2 = 4.0
)

// FireTypeFor maps the land cover at a fire's ignition point plus its
// duration (days) and area (km²) to a fire category.
func FireTypeFor(lc LandCover, durationDays, areaKm2 float64) FireType {
	managed := durationDays < managedMaxDays && areaKm2 < managedMaxAreaKm2
	switch lc {
	case LandCoverUrban:
		return FireTypeUrban
	case LandCoverAgriculture:
		return FireTypeAgriculture
	case LandCoverForest:
		if managed {
			return FireTypeForestManaged
		}
		return FireTypeForestWild
	case LandCoverShrub:
		if managed {
			return FireTypeShrubManaged
		}
		return FireTypeShrubWild
	default:
		return FireTypeOther
	}
}
