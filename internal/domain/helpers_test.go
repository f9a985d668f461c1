package domain

import (
	"context"
	"io"
	"log/slog"
	"math"

	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
	"github.com/couchcryptid/wildfire-tracker/internal/geom"
	"github.com/couchcryptid/wildfire-tracker/internal/pixel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ts(year, month, day int, ampm firetime.AMPM) firetime.TimeStep {
	return firetime.TimeStep{Year: year, Month: month, Day: day, AMPM: ampm}
}

func testEnv() Env {
	return Env{Params: DefaultParams(), Logger: discardLogger()}
}

func newTestCollection(t0 firetime.TimeStep, env Env) *Collection {
	c, err := NewCollection("TestRegion", t0, pixel.NewStore(), env)
	if err != nil {
		panic(err)
	}
	return c
}

// appendPoints adds pixels at the given projected locations to the store at step t.
func appendPoints(s *pixel.Store, t firetime.TimeStep, pts ...geom.Point) []int {
	pixels := make([]pixel.Pixel, len(pts))
	for i, p := range pts {
		pixels[i] = pixel.Pixel{X: p.X, Y: p.Y, Lat: 40 + p.Y/1e5, Lon: -120 + p.X/1e5, FRP: 10 + float64(i)}
	}
	return s.Append(t, pixels...)
}

// appendN adds n pixels at the origin.
func appendN(s *pixel.Store, t firetime.TimeStep, n int) []int {
	return s.Append(t, make([]pixel.Pixel, n)...)
}

// fixedAreaGeometry builds every hull as a square of the given area, so
// density and area can be set exactly.
type fixedAreaGeometry struct {
	*geom.Planar
	areaKm2 float64
}

func fixedArea(km2 float64) *fixedAreaGeometry {
	return &fixedAreaGeometry{Planar: geom.NewPlanar(geom.DefaultSegments), areaKm2: km2}
}

func (g *fixedAreaGeometry) HullOf(pts []geom.Point, _ float64) (geom.Shape, error) {
	if len(pts) == 0 {
		return geom.Shape{}, nil
	}
	side := math.Sqrt(g.areaKm2 * 1e6)
	return geom.NewShape(geom.Ring{{X: 0, Y: 0}, {X: side, Y: 0}, {X: side, Y: side}, {X: 0, Y: side}}), nil
}

// failingNearBoundary makes fire-line extraction fail.
type failingNearBoundary struct {
	*geom.Planar
}

func (failingNearBoundary) NearBoundary([]geom.Point, geom.Shape, float64) ([]int, error) {
	return nil, geom.ErrGeometry
}

// clipRecorder keeps the radius of the last fire-line clip.
type clipRecorder struct {
	*geom.Planar
	radius float64
}

func (g *clipRecorder) ClipToDiscs(lines geom.Lines, centers []geom.Point, radius float64) (geom.Lines, error) {
	g.radius = radius
	return g.Planar.ClipToDiscs(lines, centers, radius)
}

type stubClassifier struct {
	ft    FireType
	err   error
	calls int
}

func (s *stubClassifier) Classify(_ context.Context, _ *Fire) (FireType, error) {
	s.calls++
	return s.ft, s.err
}

type recordingRemaps struct {
	year    int
	region  string
	mapping []IDMapping
	err     error
}

func (r *recordingRemaps) WriteRemap(_ context.Context, year int, region string, mapping []IDMapping) error {
	if r.err != nil {
		return r.err
	}
	r.year, r.region, r.mapping = year, region, mapping
	return nil
}
