// Package geom is the planar geometry engine used for fire perimeters.
//
// Coordinates are projected metres. A fire hull is a Shape, a tagged variant
// that is either Empty, Single (one outer ring, possibly with holes) or Multi
// (several disjoint outer rings). Every operation treats the three variants
// uniformly, so callers never branch on the concrete shape.
//
// Polygon union and line clipping are done with github.com/ctessum/geom;
// Shape converts to and from its Polygon at those boundaries.
package geom

import (
	"errors"
	"math"

	cgeom "github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrGeometry reports degenerate geometry input (non-finite coordinates,
// negative distances, hulls that collapse to fewer than three vertices).
var ErrGeometry = errors.New("geometry failure")

// Point is a projected planar coordinate in metres.
type Point = r2.Vec

// Kind tags the variant held by a Shape.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindSingle
	KindMulti
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindSingle:
		return "single"
	case KindMulti:
		return "multi"
	default:
		return "unknown"
	}
}

// Ring is a simple closed polygon. The closing edge from the last vertex
// back to the first is implicit. Orientation is not significant.
type Ring []Point

// Area returns the enclosed area in square metres.
func (r Ring) Area() float64 {
	if len(r) < 3 {
		return 0
	}
	var twice float64
	for i := range r {
		twice += r2.Cross(r[i], r[(i+1)%len(r)])
	}
	return math.Abs(twice) / 2
}

// Perimeter returns the ring length in metres.
func (r Ring) Perimeter() float64 {
	return r.Edges().Length()
}

// Edges returns the ring's boundary as segments.
func (r Ring) Edges() Lines {
	if len(r) < 2 {
		return nil
	}
	out := make(Lines, 0, len(r))
	for i := range r {
		out = append(out, Segment{A: r[i], B: r[(i+1)%len(r)]})
	}
	return out
}

// Contains reports whether p lies inside or on the ring.
func (r Ring) Contains(p Point) bool {
	if len(r) < 3 {
		return false
	}
	return r.onEdge(p) || r.interior(p)
}

func (r Ring) onEdge(p Point) bool {
	for _, s := range r.Edges() {
		if distanceToSegment(p, s) <= edgeTolerance {
			return true
		}
	}
	return false
}

// interior is an even-odd ray cast towards +X.
func (r Ring) interior(p Point) bool {
	inside := false
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// edgeTolerance is how close, in metres, a point must be to count as on a boundary.
const edgeTolerance = 1e-9

// Shape is a possibly multi-part polygon. The zero value is Empty.
//
// rings holds outer rings and holes alike; a ring nested inside an odd
// number of other rings is a hole.
type Shape struct {
	rings []Ring
	outer int
}

// NewShape builds a Shape from rings, dropping rings with fewer than three
// vertices. Rings must not cross; a ring inside another is a hole.
func NewShape(rings ...Ring) Shape {
	var kept []Ring
	for _, r := range rings {
		if len(r) >= 3 {
			kept = append(kept, append(Ring(nil), r...))
		}
	}
	return Shape{rings: kept, outer: countOuter(kept)}
}

func countOuter(rings []Ring) int {
	var n int
	for i, r := range rings {
		depth := 0
		for j, other := range rings {
			if i != j && other.interior(r[0]) {
				depth++
			}
		}
		if depth%2 == 0 {
			n++
		}
	}
	return n
}

// Kind returns the variant tag.
func (s Shape) Kind() Kind {
	switch {
	case len(s.rings) == 0:
		return KindEmpty
	case s.outer <= 1:
		return KindSingle
	default:
		return KindMulti
	}
}

// IsEmpty reports whether the shape has no rings.
func (s Shape) IsEmpty() bool {
	return len(s.rings) == 0
}

// Parts returns a copy of the shape's rings, holes included.
func (s Shape) Parts() []Ring {
	out := make([]Ring, len(s.rings))
	for i, r := range s.rings {
		out[i] = append(Ring(nil), r...)
	}
	return out
}

// Area returns the covered area in square metres, holes excluded.
func (s Shape) Area() float64 {
	if s.IsEmpty() {
		return 0
	}
	return s.polygon().Area()
}

// Length returns the total boundary length in metres.
func (s Shape) Length() float64 {
	return s.Boundary().Length()
}

// Boundary returns the edges of every ring, holes included.
func (s Shape) Boundary() Lines {
	var out Lines
	for _, r := range s.rings {
		out = append(out, r.Edges()...)
	}
	return out
}

// Contains reports whether p lies inside the shape or on its boundary.
func (s Shape) Contains(p Point) bool {
	inside := false
	for _, r := range s.rings {
		if r.onEdge(p) {
			return true
		}
		if r.interior(p) {
			inside = !inside
		}
	}
	return inside
}

func (s Shape) polygon() cgeom.Polygon {
	poly := make(cgeom.Polygon, 0, len(s.rings))
	for _, r := range s.rings {
		path := make([]cgeom.Point, len(r))
		for i, p := range r {
			path[i] = cgeom.Point{X: p.X, Y: p.Y}
		}
		poly = append(poly, path)
	}
	return poly
}

// shapeFrom converts a clipper result, dropping repeated closing vertices
// and rings left with fewer than three vertices.
func shapeFrom(poly cgeom.Polygon) Shape {
	rings := make([]Ring, 0, len(poly))
	for _, path := range poly {
		r := make(Ring, 0, len(path))
		for _, p := range path {
			q := Point{X: p.X, Y: p.Y}
			if len(r) > 0 && r[len(r)-1] == q {
				continue
			}
			r = append(r, q)
		}
		if len(r) > 1 && r[0] == r[len(r)-1] {
			r = r[:len(r)-1]
		}
		if len(r) >= 3 && r.Area() > 0 {
			rings = append(rings, r)
		}
	}
	return Shape{rings: rings, outer: countOuter(rings)}
}

func (s Shape) finite() bool {
	for _, r := range s.rings {
		for _, p := range r {
			if !finite(p) {
				return false
			}
		}
	}
	return true
}

// Segment is a straight line piece between two points.
type Segment struct {
	A, B Point
}

// Length returns the segment length in metres.
func (s Segment) Length() float64 {
	return r2.Norm(r2.Sub(s.B, s.A))
}

// Lines is a set of segments, the planar equivalent of a multi-line string.
type Lines []Segment

// Length returns the summed segment length in metres.
func (l Lines) Length() float64 {
	lengths := make([]float64, len(l))
	for i, s := range l {
		lengths[i] = s.Length()
	}
	return floats.Sum(lengths)
}

// IsEmpty reports whether there are no segments.
func (l Lines) IsEmpty() bool {
	return len(l) == 0
}

// cross returns the z component of (a-o) x (b-o); positive when o→a→b turns left.
func cross(o, a, b Point) float64 {
	return r2.Cross(r2.Sub(a, o), r2.Sub(b, o))
}

func finite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
