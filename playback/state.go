package playback

import "time"

// State is the scheduler state. It is one of Idle, Fetching or Playing.
type State interface {
	isState()
}

// Idle has no timers running.
type Idle struct{}

// Fetching waits for the first fetch of a run.
type Fetching struct{}

// Playing advances the clock and the cursor. LastTick is the time of the
// most recent fine tick.
type Playing struct {
	LastTick time.Time
}

func (Idle) isState()     {}
func (Fetching) isState() {}
func (Playing) isState()  {}

// StateName returns a lowercase name for s.
func StateName(s State) string {
	switch s.(type) {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}
