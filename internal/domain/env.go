package domain

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/wildfire-tracker/internal/geom"
)

// Geometry is the set of planar operations fires need. geom.Planar implements it.
type Geometry interface {
	HullOf(pts []geom.Point, buffer float64) (geom.Shape, error)
	Union(a, b geom.Shape) (geom.Shape, error)
	NearBoundary(pts []geom.Point, hull geom.Shape, dist float64) ([]int, error)
	ClipToDiscs(lines geom.Lines, centers []geom.Point, radius float64) (geom.Lines, error)
}

// RemapWriter durably records the old→new id table of an annual compaction.
type RemapWriter interface {
	WriteRemap(ctx context.Context, year int, region string, mapping []IDMapping) error
}

// Env bundles the configuration and collaborators shared by a collection and
// its fires. Only Params is required.
type Env struct {
	Params     Params
	Geometry   Geometry
	Classifier Classifier
	Remaps     RemapWriter
	Logger     *slog.Logger

	// OnFireLineFallback is called when fire-line extraction fails and the
	// previous fire line is reused.
	OnFireLineFallback func(fireID int, err error)
}

func (e Env) withDefaults() Env {
	if e.Geometry == nil {
		e.Geometry = geom.NewPlanar(geom.DefaultSegments)
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	return e
}

// resolveEnv fills in default collaborators, keeping env itself when complete.
func resolveEnv(env *Env) *Env {
	if env != nil && env.Geometry != nil && env.Logger != nil {
		return env
	}
	e := Env{Params: DefaultParams()}
	if env != nil {
		e = *env
	}
	e = e.withDefaults()
	return &e
}
