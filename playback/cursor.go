package playback

// Cursor is the index of the frame being displayed.
type Cursor struct {
	Index int
}

// Advance moves to the next frame, wrapping at n. With no frames the cursor
// stays at zero.
func (c *Cursor) Advance(n int) int {
	if n <= 0 {
		c.Index = 0
		return 0
	}
	c.Index = (c.Index + 1) % n
	return c.Index
}

// Reset rewinds to the first frame.
func (c *Cursor) Reset() { c.Index = 0 }
