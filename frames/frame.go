package frames

import (
	"sort"

	"github.com/theoremus-urban-solutions/circuit-led/participant"
)

// Frame is the board state at one timestamp. It must not be modified once
// appended to a Sequence.
type Frame struct {
	TimestampMS  int64                     `json:"timestamp_ms"`
	MarkerColors map[int]participant.Color `json:"marker_colors"`
}

func newFrame(ts int64) Frame {
	return Frame{TimestampMS: ts, MarkerColors: map[int]participant.Color{}}
}

// Color returns the color of a marker and whether it is lit in this frame.
func (f Frame) Color(markerID int) (participant.Color, bool) {
	c, ok := f.MarkerColors[markerID]
	return c, ok
}

// Markers returns the lit marker ids in ascending order.
func (f Frame) Markers() []int {
	ids := make([]int, 0, len(f.MarkerColors))
	for id := range f.MarkerColors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
