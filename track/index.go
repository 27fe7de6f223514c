package track

import (
	"errors"
	"fmt"
	"math"

	"github.com/theoremus-urban-solutions/circuit-led/utils"
)

// ErrNoMarkers is returned when an index is built from an empty table.
var ErrNoMarkers = errors.New("track: marker table is empty")

// Index answers nearest-marker queries.
type Index interface {
	// Nearest returns the id of the marker closest to p.
	Nearest(p Point) int
}

// LinearIndex scans every marker on each query. Ties go to the marker that
// comes first in table order.
type LinearIndex struct {
	markers []Marker
	bounds  Bounds
}

// NewLinearIndex builds an index over markers, keeping their order.
func NewLinearIndex(markers []Marker) (*LinearIndex, error) {
	if len(markers) == 0 {
		return nil, ErrNoMarkers
	}
	seen := make(map[int]struct{}, len(markers))
	b := Bounds{MinX: math.Inf(1), MaxX: math.Inf(-1), MinY: math.Inf(1), MaxY: math.Inf(-1)}
	for _, m := range markers {
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("track: duplicate marker id %d", m.ID)
		}
		seen[m.ID] = struct{}{}
		b.MinX = math.Min(b.MinX, m.Position.X)
		b.MaxX = math.Max(b.MaxX, m.Position.X)
		b.MinY = math.Min(b.MinY, m.Position.Y)
		b.MaxY = math.Max(b.MaxY, m.Position.Y)
	}
	own := make([]Marker, len(markers))
	copy(own, markers)
	return &LinearIndex{markers: own, bounds: b}, nil
}

// Nearest implements Index.
func (ix *LinearIndex) Nearest(p Point) int {
	best := ix.markers[0]
	bestDist := utils.Distance(p.X, p.Y, best.Position.X, best.Position.Y)
	for _, m := range ix.markers[1:] {
		d := utils.Distance(p.X, p.Y, m.Position.X, m.Position.Y)
		if d < bestDist {
			best, bestDist = m, d
		}
	}
	return best.ID
}

// Markers returns a copy of the marker table in its fixed order.
func (ix *LinearIndex) Markers() []Marker {
	out := make([]Marker, len(ix.markers))
	copy(out, ix.markers)
	return out
}

// Len returns the number of markers.
func (ix *LinearIndex) Len() int { return len(ix.markers) }

// Bounds returns the bounding box of the table.
func (ix *LinearIndex) Bounds() Bounds { return ix.bounds }
