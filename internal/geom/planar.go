package geom

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	cgeom "github.com/ctessum/geom"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

// DefaultSegments is the number of vertices used to approximate a buffered pixel.
const DefaultSegments = 16

// Planar is the geometry engine for projected coordinates.
type Planar struct {
	segments int
}

// NewPlanar creates an engine that approximates buffer circles with the given
// number of vertices. Values below 8 fall back to DefaultSegments.
func NewPlanar(segments int) *Planar {
	if segments < 8 {
		segments = DefaultSegments
	}
	return &Planar{segments: segments}
}

// HullOf returns the convex hull of the points, each grown by buffer metres.
// No points yields an Empty shape.
func (e *Planar) HullOf(pts []Point, buffer float64) (Shape, error) {
	if len(pts) == 0 {
		return Shape{}, nil
	}
	if buffer < 0 || math.IsNaN(buffer) || math.IsInf(buffer, 0) {
		return Shape{}, fmt.Errorf("%w: buffer %v", ErrGeometry, buffer)
	}

	vertices := make([]Point, 0, len(pts)*max(1, e.segments))
	for _, p := range pts {
		if !finite(p) {
			return Shape{}, fmt.Errorf("%w: non-finite point %v", ErrGeometry, p)
		}
		if buffer == 0 {
			vertices = append(vertices, p)
			continue
		}
		for k := 0; k < e.segments; k++ {
			theta := 2 * math.Pi * float64(k) / float64(e.segments)
			vertices = append(vertices, r2.Add(p, r2.Vec{X: buffer * math.Cos(theta), Y: buffer * math.Sin(theta)}))
		}
	}

	hull := convexHull(vertices)
	if len(hull) < 3 {
		return Shape{}, fmt.Errorf("%w: hull collapsed to %d vertices", ErrGeometry, len(hull))
	}
	return Shape{rings: []Ring{hull}, outer: 1}, nil
}

// Union returns the exact polygon union of two shapes. Overlap is counted
// once, disjoint inputs stay separate parts and enclosed gaps become holes.
func (e *Planar) Union(a, b Shape) (Shape, error) {
	if !a.finite() || !b.finite() {
		return Shape{}, fmt.Errorf("%w: non-finite vertex in union input", ErrGeometry)
	}
	switch {
	case a.IsEmpty():
		return NewShape(b.rings...), nil
	case b.IsEmpty():
		return NewShape(a.rings...), nil
	}

	u := shapeFrom(a.polygon().Union(b.polygon()).(cgeom.Polygon))
	if u.IsEmpty() {
		return Shape{}, fmt.Errorf("%w: union of non-empty shapes is empty", ErrGeometry)
	}
	return u, nil
}

// NearBoundary returns the indices of points within dist metres of the
// shape's boundary, on either side of it.
func (e *Planar) NearBoundary(pts []Point, hull Shape, dist float64) ([]int, error) {
	if dist < 0 || math.IsNaN(dist) {
		return nil, fmt.Errorf("%w: distance %v", ErrGeometry, dist)
	}
	boundary := hull.Boundary()
	if len(boundary) == 0 {
		return nil, nil
	}

	var out []int
	for i, p := range pts {
		if !finite(p) {
			return nil, fmt.Errorf("%w: non-finite point %v", ErrGeometry, p)
		}
		for _, s := range boundary {
			if distanceToSegment(p, s) <= dist {
				out = append(out, i)
				break
			}
		}
	}
	return out, nil
}

// ClipToDiscs returns the parts of lines lying within radius metres of any
// centre. Each disc is approximated by the engine's regular polygon with a
// vertex on each axis.
func (e *Planar) ClipToDiscs(lines Lines, centers []Point, radius float64) (Lines, error) {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: clip radius %v", ErrGeometry, radius)
	}
	for _, c := range centers {
		if !finite(c) {
			return nil, fmt.Errorf("%w: non-finite centre %v", ErrGeometry, c)
		}
	}
	if len(lines) == 0 || len(centers) == 0 {
		return nil, nil
	}

	var discs cgeom.Polygon
	for _, c := range centers {
		d := e.disc(c, radius)
		if discs == nil {
			discs = d
			continue
		}
		discs = discs.Union(d).(cgeom.Polygon)
	}

	ml := make(cgeom.MultiLineString, 0, len(lines))
	for _, s := range lines {
		if s.Length() == 0 {
			continue
		}
		ml = append(ml, cgeom.LineString{{X: s.A.X, Y: s.A.Y}, {X: s.B.X, Y: s.B.Y}})
	}
	if len(ml) == 0 {
		return nil, nil
	}
	return linesFrom(ml.Clip(discs)), nil
}

// disc returns a regular polygon inscribed in the circle. The segment count
// is rounded up to a multiple of four so the axis extents are exact.
func (e *Planar) disc(c Point, radius float64) cgeom.Polygon {
	n := (e.segments + 3) / 4 * 4
	path := make([]cgeom.Point, n)
	for k := range path {
		theta := 2 * math.Pi * float64(k) / float64(n)
		path[k] = cgeom.Point{X: c.X + radius*math.Cos(theta), Y: c.Y + radius*math.Sin(theta)}
	}
	return cgeom.Polygon{path}
}

func linesFrom(l cgeom.Linear) Lines {
	var parts []cgeom.LineString
	switch v := l.(type) {
	case cgeom.LineString:
		parts = []cgeom.LineString{v}
	case cgeom.MultiLineString:
		parts = v
	}

	var out Lines
	for _, ls := range parts {
		for i := 1; i < len(ls); i++ {
			s := Segment{A: Point{X: ls[i-1].X, Y: ls[i-1].Y}, B: Point{X: ls[i].X, Y: ls[i].Y}}
			if s.Length() > 0 {
				out = append(out, s)
			}
		}
	}
	return out
}

// Centroid returns the mean position of the points; ok is false for no points.
func Centroid(pts []Point) (c Point, ok bool) {
	if len(pts) == 0 {
		return Point{}, false
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	return Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}, true
}

// convexHull computes the counter-clockwise hull with Andrew's monotone chain.
// Collinear and duplicate points are dropped.
func convexHull(pts []Point) Ring {
	p := slices.Clone(pts)
	slices.SortFunc(p, func(a, b Point) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	p = slices.Compact(p)
	if len(p) < 3 {
		return Ring(p)
	}

	hull := make([]Point, 0, 2*len(p))
	for _, q := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		q := p[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], q) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, q)
	}
	return Ring(hull[:len(hull)-1])
}

func distanceToSegment(p Point, s Segment) float64 {
	d := r2.Sub(s.B, s.A)
	l2 := r2.Norm2(d)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, s.A))
	}
	t := math.Max(0, math.Min(1, r2.Dot(r2.Sub(p, s.A), d)/l2))
	return r2.Norm(r2.Sub(p, r2.Add(s.A, r2.Scale(t, d))))
}
