// Package pixel holds the shared table of detected fire pixels for one
// processing unit (region). Fires never copy pixels; they filter this table by
// their id and time step. The store has a single writer per step and no locks.
package pixel

import (
	"fmt"
	"time"

	"github.com/couchcryptid/wildfire-tracker/internal/firetime"
	"github.com/couchcryptid/wildfire-tracker/internal/geom"
)

const (
	// NoFire marks a pixel not attributed to any fire.
	NoFire = -1
	// Retired marks a pixel whose fire was dropped at an annual compaction.
	Retired = -2
)

// Pixel is one active-fire detection.
type Pixel struct {
	Lat        float64
	Lon        float64
	X          float64 // projected easting, metres
	Y          float64 // projected northing, metres
	Line       int
	Sample     int
	FRP        float64 // fire radiative power, MW
	DetectedAt time.Time
	Satellite  string
	Step       firetime.TimeStep
	FireID     int
}

// Point returns the projected location.
func (p Pixel) Point() geom.Point {
	return geom.Point{X: p.X, Y: p.Y}
}

// Store is an append-only pixel table with a mutable fire-id column.
type Store struct {
	rows []Pixel
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds pixels tagged with step and no fire, returning their store indices.
func (s *Store) Append(step firetime.TimeStep, pixels ...Pixel) []int {
	idx := make([]int, len(pixels))
	for i, p := range pixels {
		p.Step = step
		p.FireID = NoFire
		idx[i] = len(s.rows)
		s.rows = append(s.rows, p)
	}
	return idx
}

// Len returns the number of stored pixels.
func (s *Store) Len() int {
	return len(s.rows)
}

// At returns the pixel at index i.
func (s *Store) At(i int) Pixel {
	return s.rows[i]
}

// Assign sets the fire id of the given pixels.
func (s *Store) Assign(indices []int, fireID int) error {
	for _, i := range indices {
		if i < 0 || i >= len(s.rows) {
			return fmt.Errorf("assign pixel %d: index out of range [0,%d)", i, len(s.rows))
		}
	}
	for _, i := range indices {
		s.rows[i].FireID = fireID
	}
	return nil
}

// ByFire returns every pixel attributed to fireID. Linear in the store size.
func (s *Store) ByFire(fireID int) []Pixel {
	var out []Pixel
	for _, p := range s.rows {
		if p.FireID == fireID {
			out = append(out, p)
		}
	}
	return out
}

// ByFireAt returns the pixels attributed to fireID that were detected at step.
// Linear in the store size.
func (s *Store) ByFireAt(fireID int, step firetime.TimeStep) []Pixel {
	var out []Pixel
	for _, p := range s.rows {
		if p.FireID == fireID && p.Step == step {
			out = append(out, p)
		}
	}
	return out
}

// CountByFire returns the number of pixels attributed to fireID.
func (s *Store) CountByFire(fireID int) int {
	n := 0
	for _, p := range s.rows {
		if p.FireID == fireID {
			n++
		}
	}
	return n
}

// Reassign moves every pixel of fire from to fire to. It returns the number moved.
func (s *Store) Reassign(from, to int) int {
	n := 0
	for i := range s.rows {
		if s.rows[i].FireID == from {
			s.rows[i].FireID = to
			n++
		}
	}
	return n
}

// Remap rewrites fire ids through mapping. Attributed pixels whose fire is
// absent from mapping are marked Retired.
func (s *Store) Remap(mapping map[int]int) {
	for i := range s.rows {
		id := s.rows[i].FireID
		if id < 0 {
			continue
		}
		if next, ok := mapping[id]; ok {
			s.rows[i].FireID = next
		} else {
			s.rows[i].FireID = Retired
		}
	}
}

// Points returns the projected locations of pixels.
func Points(pixels []Pixel) []geom.Point {
	out := make([]geom.Point, len(pixels))
	for i, p := range pixels {
		out[i] = p.Point()
	}
	return out
}
