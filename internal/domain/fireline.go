package domain

import (
	"github.com/couchcryptid/wildfire-tracker/internal/geom"
	"github.com/couchcryptid/wildfire-tracker/internal/pixel"
)

// FireLinePixels returns the current step's pixels lying near the hull boundary.
func (f *Fire) FireLinePixels() []pixel.Pixel {
	pixels := f.NewPixels()
	idx, err := f.env.Geometry.NearBoundary(pixel.Points(pixels), f.hull, f.env.Params.NearBoundaryDistance)
	if err != nil {
		return nil
	}
	out := make([]pixel.Pixel, len(idx))
	for i, k := range idx {
		out[i] = pixels[k]
	}
	return out
}

// FireLine returns the active part of the hull boundary: the boundary
// segments within reach of this step's near-boundary pixels. On steps with no
// such pixels, or when extraction fails, the last non-empty fire line is
// returned instead.
func (f *Fire) FireLine() geom.Lines {
	line, err := f.extractFireLine()
	if err != nil {
		f.env.Logger.Warn("fire line extraction failed, using previous fire line",
			"fire_id", f.id,
			"error", err,
		)
		if f.env.OnFireLineFallback != nil {
			f.env.OnFireLineFallback(f.id, err)
		}
		return append(geom.Lines(nil), f.fireLinePrior...)
	}
	if line.IsEmpty() {
		return append(geom.Lines(nil), f.fireLinePrior...)
	}
	f.fireLinePrior = line
	return append(geom.Lines(nil), line...)
}

// FireLineLength returns the fire line length in km.
func (f *Fire) FireLineLength() float64 {
	return f.FireLine().Length() / 1e3
}

func (f *Fire) extractFireLine() (geom.Lines, error) {
	if f.hull.IsEmpty() {
		return nil, nil
	}
	pts := f.NewLocations()
	if len(pts) == 0 {
		return nil, nil
	}
	idx, err := f.env.Geometry.NearBoundary(pts, f.hull, f.env.Params.NearBoundaryDistance)
	if err != nil {
		return nil, err
	}
	if len(idx) == 0 {
		return nil, nil
	}
	centers := make([]geom.Point, len(idx))
	for i, k := range idx {
		centers[i] = pts[k]
	}
	// Boundary covers every part, so single- and multi-part hulls clip the same way.
	// The reach uses the VIIRS buffer for every sensor.
	radius := f.env.Params.ViirsBuffer + f.env.Params.FireLineBuffer
	return f.env.Geometry.ClipToDiscs(f.hull.Boundary(), centers, radius)
}
