package telemetry

import (
	"time"

	"github.com/theoremus-urban-solutions/circuit-led/track"
)

// Sample is one valid observation of a participant's position.
type Sample struct {
	ParticipantID int
	Position      track.Point
	TimestampMS   int64
}

// Record is a raw location record as returned by a Source.
type Record struct {
	X             float64
	Y             float64
	Date          string
	ParticipantID int
}

// Window is a time range with exclusive bounds. A zero bound is open.
type Window struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether neither bound is set.
func (w Window) IsZero() bool { return w.From.IsZero() && w.To.IsZero() }

// Contains reports whether t lies strictly inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && !t.After(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// Query asks a Source for one participant's locations.
type Query struct {
	SessionKey    string
	ParticipantID int
	Window        Window
}

// Request describes one FetchBatch call.
type Request struct {
	Participants        []int
	BatchSize           int    // <= 0 fetches every participant in one batch
	PerParticipantLimit int    // <= 0 collects until the source runs dry
	Window              Window // zero bounds fall back to the session window
}
