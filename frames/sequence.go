package frames

import "sync"

// Sequence is an append-only list of frames with strictly increasing
// timestamps. One goroutine appends; any number may read.
type Sequence struct {
	mu       sync.RWMutex
	frames   []Frame
	rejected int
}

// NewSequence creates an empty sequence.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Append adds frames in order and returns how many were accepted. A frame
// whose timestamp is not after the current last frame is rejected, so a
// timestamp is never split across two frames.
func (s *Sequence) Append(frames ...Frame) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	accepted := 0
	for _, f := range frames {
		if n := len(s.frames); n > 0 && f.TimestampMS <= s.frames[n-1].TimestampMS {
			s.rejected++
			continue
		}
		s.frames = append(s.frames, f)
		accepted++
	}
	if dropped := len(frames) - accepted; dropped > 0 {
		log.Debugf("sequence: rejected %d frames at or before the last timestamp", dropped)
	}
	return accepted
}

// Len returns the current number of frames.
func (s *Sequence) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// At returns the frame at index i.
func (s *Sequence) At(i int) (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.frames) {
		return Frame{}, false
	}
	return s.frames[i], true
}

// Last returns the most recent frame.
func (s *Sequence) Last() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// Snapshot returns the frames appended so far. The slice header is copied;
// the frames themselves are shared and read-only.
func (s *Sequence) Snapshot() []Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames[:len(s.frames):len(s.frames)]
}

// Rejected returns how many frames Append has refused.
func (s *Sequence) Rejected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rejected
}
