package playback

import "time"

// SessionClock accumulates wall-clock time between ticks while running.
type SessionClock struct {
	elapsed time.Duration
	last    time.Time
	running bool
}

// Resume starts accumulating from now.
func (c *SessionClock) Resume(now time.Time) {
	c.last = now
	c.running = true
}

// Pause freezes the clock.
func (c *SessionClock) Pause() {
	c.running = false
}

// Advance adds the time since the previous tick and returns the total.
// It does nothing while paused.
func (c *SessionClock) Advance(now time.Time) time.Duration {
	if !c.running {
		return c.elapsed
	}
	if now.After(c.last) {
		c.elapsed += now.Sub(c.last)
	}
	c.last = now
	return c.elapsed
}

// Reset zeroes the elapsed time without changing whether the clock runs.
func (c *SessionClock) Reset() {
	c.elapsed = 0
}

// Elapsed returns the accumulated time.
func (c *SessionClock) Elapsed() time.Duration { return c.elapsed }

// Running reports whether the clock is accumulating.
func (c *SessionClock) Running() bool { return c.running }
