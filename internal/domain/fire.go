package domain

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
	"github.com/couchcryptid/wildfire-tracker/internal/geom"
	"github.com/couchcryptid/wildfire-tracker/internal/pixel"
)

// State is the lifecycle state of a fire at its current time step.
type State string

const (
	StateGrowing State = "GROWING" // active and igniting this step
	StateActive  State = "ACTIVE"
	StateSleeper State = "SLEEPER"
	StateDead    State = "DEAD"
	StateInvalid State = "INVALID"
)

// Geo is a WGS-84 latitude/longitude pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Fire is one tracked fire event. Its pixels live in the shared store and are
// found by filtering on the fire id, so most accessors scan the store.
type Fire struct {
	id      int
	mergeID int
	sensor  Sensor

	t      firetime.TimeStep // current step
	tStart firetime.TimeStep // ignition step
	tEnd   firetime.TimeStep // last step with new pixels

	hull          geom.Shape
	fireLinePrior geom.Lines
	invalid       bool

	fireType   FireType
	classified bool

	store *pixel.Store
	env   *Env
}

// NewFire creates a fire at step t from the given store indices and
// attributes those pixels to it.
func NewFire(id int, t firetime.TimeStep, pixels []int, store *pixel.Store, sensor Sensor, env *Env) (*Fire, error) {
	if len(pixels) == 0 {
		return nil, fmt.Errorf("%w: fire %d has no pixels", ErrInvalidInput, id)
	}
	env = resolveEnv(env)
	pts := make([]geom.Point, 0, len(pixels))
	for _, i := range pixels {
		if i < 0 || i >= store.Len() {
			return nil, fmt.Errorf("%w: fire %d pixel index %d out of range", ErrInvalidInput, id, i)
		}
		pts = append(pts, store.At(i).Point())
	}

	hull, err := env.Geometry.HullOf(pts, env.Params.Buffer(sensor))
	if err != nil {
		return nil, fmt.Errorf("build hull for fire %d: %w", id, err)
	}
	if err := store.Assign(pixels, id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return &Fire{
		id:      id,
		mergeID: id,
		sensor:  sensor,
		t:       t,
		tStart:  t,
		tEnd:    t,
		hull:    hull,
		store:   store,
		env:     env,
	}, nil
}

func (f *Fire) ID() int                  { return f.id }
func (f *Fire) MergeID() int             { return f.mergeID }
func (f *Fire) Sensor() Sensor           { return f.sensor }
func (f *Fire) T() firetime.TimeStep     { return f.t }
func (f *Fire) Start() firetime.TimeStep { return f.tStart }
func (f *Fire) End() firetime.TimeStep   { return f.tEnd }
func (f *Fire) Hull() geom.Shape         { return f.hull }
func (f *Fire) Invalid() bool            { return f.invalid }

// FireType returns the last classification; ok is false until UpdateClassification succeeds.
func (f *Fire) FireType() (FireType, bool) {
	return f.fireType, f.classified
}

// FireTypeName returns the display name of the classification, or "" if unclassified.
func (f *Fire) FireTypeName() string {
	if !f.classified {
		return ""
	}
	return f.fireType.String()
}

// InactiveFor returns the days since the fire last grew.
func (f *Fire) InactiveFor() float64 {
	return firetime.Diff(f.tEnd, f.t)
}

// Duration returns the days between ignition and the last growth.
func (f *Fire) Duration() float64 {
	return firetime.Diff(f.tStart, f.tEnd)
}

func (f *Fire) IsActive() bool {
	return !f.invalid && f.InactiveFor() <= f.env.Params.GrowthWindow
}

// MayReactivate reports whether the fire is a sleeper.
func (f *Fire) MayReactivate() bool {
	d := f.InactiveFor()
	return !f.invalid && d > f.env.Params.GrowthWindow && d <= f.env.Params.DeathWindow
}

func (f *Fire) IsDead() bool {
	return f.invalid || f.InactiveFor() > f.env.Params.DeathWindow
}

func (f *Fire) IsIgnition() bool {
	return f.t == f.tStart
}

// State returns the lifecycle state. Exactly one applies at any step.
func (f *Fire) State() State {
	switch {
	case f.invalid:
		return StateInvalid
	case f.IsActive() && f.IsIgnition():
		return StateGrowing
	case f.IsActive():
		return StateActive
	case f.MayReactivate():
		return StateSleeper
	default:
		return StateDead
	}
}

// Pixels returns every pixel attributed to the fire.
func (f *Fire) Pixels() []pixel.Pixel {
	return f.store.ByFire(f.id)
}

func (f *Fire) PixelCount() int {
	return f.store.CountByFire(f.id)
}

// NewPixels returns the fire's pixels detected at the current step.
func (f *Fire) NewPixels() []pixel.Pixel {
	return f.store.ByFireAt(f.id, f.t)
}

func (f *Fire) NewPixelCount() int {
	return len(f.NewPixels())
}

// NewLocations returns the projected locations of the current step's pixels.
func (f *Fire) NewLocations() []geom.Point {
	return pixel.Points(f.NewPixels())
}

// IgnitionPixels returns the pixels detected at the ignition step.
func (f *Fire) IgnitionPixels() []pixel.Pixel {
	return f.store.ByFireAt(f.id, f.tStart)
}

// IgnitionCenter returns the projected and geographic centroids of the
// ignition pixels. ok is false when none remain attributed to the fire.
func (f *Fire) IgnitionCenter() (center geom.Point, geo Geo, ok bool) {
	pixels := f.IgnitionPixels()
	center, ok = geom.Centroid(pixel.Points(pixels))
	if !ok {
		return geom.Point{}, Geo{}, false
	}
	lats := make([]float64, len(pixels))
	lons := make([]float64, len(pixels))
	for i, p := range pixels {
		lats[i], lons[i] = p.Lat, p.Lon
	}
	return center, Geo{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)}, true
}

// Area returns the burned area in km², never below the nominal pixel area.
func (f *Fire) Area() float64 {
	var area float64
	if !f.hull.IsEmpty() {
		area = f.hull.Area() / 1e6
	} else {
		area = float64(f.PixelCount()) * f.env.Params.NominalPixelArea
	}
	return max(area, f.env.Params.NominalPixelArea)
}

// PixelDensity returns pixels per km².
func (f *Fire) PixelDensity() float64 {
	area := f.Area()
	if area <= 0 {
		return 0
	}
	return float64(f.PixelCount()) / area
}

// Perimeter returns the hull boundary length in km.
func (f *Fire) Perimeter() float64 {
	return f.hull.Length() / 1e3
}

// MeanFRP returns the mean radiative power of the current step's pixels, 0 if none.
func (f *Fire) MeanFRP() float64 {
	pixels := f.NewPixels()
	if len(pixels) == 0 {
		return 0
	}
	frp := make([]float64, len(pixels))
	for i, p := range pixels {
		frp[i] = p.FRP
	}
	return stat.Mean(frp, nil)
}

// AddPixels attributes store pixels to the fire and marks it as grown at the
// current step. The hull is not touched; call UpdateHull.
func (f *Fire) AddPixels(indices []int) error {
	if f.invalid {
		return fmt.Errorf("%w: fire %d", ErrFireInvalid, f.id)
	}
	if len(indices) == 0 {
		return nil
	}
	if err := f.store.Assign(indices, f.id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	f.tEnd = f.t
	return nil
}

// UpdateHull grows the hull by the buffered hull of the given locations.
// The hull never shrinks.
func (f *Fire) UpdateHull(locations []geom.Point) error {
	if len(locations) == 0 {
		return nil
	}
	add, err := f.env.Geometry.HullOf(locations, f.env.Params.Buffer(f.sensor))
	if err != nil {
		return fmt.Errorf("hull of new pixels for fire %d: %w", f.id, err)
	}
	merged, err := f.env.Geometry.Union(f.hull, add)
	if err != nil {
		return fmt.Errorf("union hull for fire %d: %w", f.id, err)
	}
	f.hull = merged
	return nil
}

// UpdateClassification asks the classifier for the fire's category. On
// failure the previous category is kept.
func (f *Fire) UpdateClassification(ctx context.Context) {
	if f.env.Classifier == nil {
		return
	}
	ft, err := f.env.Classifier.Classify(ctx, f)
	if err != nil {
		f.env.Logger.Warn("classification failed, keeping previous fire type",
			"fire_id", f.id,
			"error", err,
		)
		return
	}
	f.fireType = ft
	f.classified = true
}

func (f *Fire) setTime(t firetime.TimeStep) {
	f.t = t
}

func (f *Fire) invalidate() {
	f.invalid = true
}

// absorb takes over every pixel and the hull of source, which is redirected here.
func (f *Fire) absorb(source *Fire) error {
	merged, err := f.env.Geometry.Union(f.hull, source.hull)
	if err != nil {
		return fmt.Errorf("union hull of fire %d into %d: %w", source.id, f.id, err)
	}
	f.store.Reassign(source.id, f.id)
	f.hull = merged
	f.tEnd = f.t
	source.mergeID = f.id
	source.invalid = true
	return nil
}

// renumbered returns a copy of the fire under a new identity.
func (f *Fire) renumbered(id int) *Fire {
	nf := *f
	nf.id = id
	nf.mergeID = id
	nf.fireLinePrior = append(geom.Lines(nil), f.fireLinePrior...)
	return &nf
}
