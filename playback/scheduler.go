package playback

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/circuit-led/frames"
	"github.com/theoremus-urban-solutions/circuit-led/internal"
	"github.com/theoremus-urban-solutions/circuit-led/telemetry"
	"github.com/theoremus-urban-solutions/circuit-led/utils"
)

var log = internal.Logger(internal.LogPlayback)

const (
	DefaultTickInterval  = 10 * time.Millisecond
	DefaultFrameInterval = 100 * time.Millisecond
	DefaultRefillDelay   = 334 * time.Millisecond

	inboxSize = 64
)

// Fetcher produces telemetry samples. *telemetry.Fetcher implements it.
type Fetcher interface {
	FetchBatch(ctx context.Context, req telemetry.Request) ([]telemetry.Sample, error)
}

// FrameBuilder turns samples into frames. *frames.Builder implements it.
type FrameBuilder interface {
	Build(samples []telemetry.Sample) []frames.Frame
}

// Options configures a Scheduler. Zero durations take the defaults.
type Options struct {
	Participants        []int
	BatchSize           int
	PerParticipantLimit int
	TickInterval        time.Duration
	FrameInterval       time.Duration
	RefillDelay         time.Duration

	// Clock defaults to the wall clock.
	Clock clock.Clock

	// OnChange is called from the scheduler loop after every command, fetch
	// result and frame advance. It must not block.
	OnChange func(Snapshot)
}

// Snapshot is a consistent view of the scheduler at one point in time.
type Snapshot struct {
	State      State
	RunID      uuid.UUID
	FrameIndex int
	FrameCount int
	// Frame is the frame under the cursor, nil when there are none.
	Frame     *frames.Frame
	Blink     bool
	Elapsed   time.Duration
	Refilling bool
}

// StateName returns the name of the snapshot's state.
func (s Snapshot) StateName() string { return StateName(s.State) }

type message any

type (
	startMsg     struct{}
	stopMsg      struct{}
	toggleMsg    struct{}
	resetMsg     struct{}
	tickMsg      struct{ now time.Time }
	frameTickMsg struct{}
	fetchedMsg   struct {
		run     uuid.UUID
		refill  bool
		samples []telemetry.Sample
		err     error
	}
)

type effect int

const (
	effectNone effect = iota
	effectFetch
	effectRefill
)

// Scheduler runs the playback state machine.
type Scheduler struct {
	fetcher Fetcher
	builder FrameBuilder
	opts    Options
	clk     clock.Clock
	inbox   chan message
	done    chan struct{}

	// Owned by the loop goroutine.
	state        State
	runID        uuid.UUID
	cursor       Cursor
	blink        bool
	session      SessionClock
	resume       time.Time
	refilling    bool
	refillCancel context.CancelFunc
	ticker       *clock.Ticker
	frameTicker  *clock.Ticker

	mu   sync.RWMutex
	seq  *frames.Sequence
	snap Snapshot
}

// New creates an idle scheduler.
func New(fetcher Fetcher, builder FrameBuilder, opts Options) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.RefillDelay <= 0 {
		opts.RefillDelay = DefaultRefillDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	s := &Scheduler{
		fetcher: fetcher,
		builder: builder,
		opts:    opts,
		clk:     opts.Clock,
		inbox:   make(chan message, inboxSize),
		done:    make(chan struct{}),
		state:   Idle{},
		seq:     frames.NewSequence(),
	}
	s.publish()
	return s
}

// Start begins a new run when idle.
func (s *Scheduler) Start() { s.send(startMsg{}) }

// Stop halts playback, keeping the frames.
func (s *Scheduler) Stop() { s.send(stopMsg{}) }

// Toggle starts when idle and stops otherwise.
func (s *Scheduler) Toggle() { s.send(toggleMsg{}) }

// Reset zeroes the session clock and rewinds the cursor.
func (s *Scheduler) Reset() { s.send(resetMsg{}) }

// Snapshot returns the state as of the last processed message.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Frames returns the frame sequence of the current run.
func (s *Scheduler) Frames() *frames.Sequence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Run processes commands, timer ticks and fetch results until ctx ends.
// It must be called once.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.stopTimers()
	defer s.cancelRefill()

	for {
		var tickC, frameC <-chan time.Time
		if s.ticker != nil {
			tickC, frameC = s.ticker.C, s.frameTicker.C
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-s.inbox:
			s.dispatch(ctx, m)
		case now := <-tickC:
			s.dispatch(ctx, tickMsg{now: now})
		case <-frameC:
			s.dispatch(ctx, frameTickMsg{})
		}
	}
}

func (s *Scheduler) send(m message) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}

func (s *Scheduler) post(ctx context.Context, m message) {
	select {
	case s.inbox <- m:
	case <-ctx.Done():
	case <-s.done:
	}
}

func (s *Scheduler) dispatch(ctx context.Context, m message) {
	switch s.update(m) {
	case effectFetch:
		s.fetch(ctx)
	case effectRefill:
		s.scheduleRefill(ctx)
	}
	s.syncTimers()
	snap := s.publish()
	if _, fine := m.(tickMsg); !fine && s.opts.OnChange != nil {
		s.opts.OnChange(snap)
	}
}

// update applies one message to the loop-owned state and reports the
// asynchronous work it requires.
func (s *Scheduler) update(m message) effect {
	switch m := m.(type) {
	case startMsg:
		if _, idle := s.state.(Idle); idle {
			return s.begin()
		}
	case stopMsg:
		if _, idle := s.state.(Idle); !idle {
			s.halt()
		}
	case toggleMsg:
		if _, idle := s.state.(Idle); idle {
			return s.begin()
		}
		s.halt()
	case resetMsg:
		s.session.Reset()
		s.cursor.Reset()
		s.blink = false
	case tickMsg:
		if p, ok := s.state.(Playing); ok {
			s.session.Advance(m.now)
			p.LastTick = m.now
			s.state = p
		}
	case frameTickMsg:
		if _, ok := s.state.(Playing); ok {
			if n := s.seq.Len(); n > 0 {
				s.cursor.Advance(n)
				s.blink = !s.blink
			}
		}
	case fetchedMsg:
		return s.receive(m)
	}
	return effectNone
}

func (s *Scheduler) begin() effect {
	s.runID = uuid.New()
	s.cursor.Reset()
	s.blink = false
	s.resume = time.Time{}
	s.mu.Lock()
	s.seq = frames.NewSequence()
	s.mu.Unlock()
	s.state = Fetching{}
	log.Infof("run %s: fetching %d participants", s.runID, len(s.opts.Participants))
	return effectFetch
}

func (s *Scheduler) halt() {
	log.Infof("run %s: stopped in %s with %d frames", s.runID, StateName(s.state), s.seq.Len())
	s.state = Idle{}
	s.blink = false
	s.session.Pause()
	s.cancelRefill()
	s.refilling = false
}

func (s *Scheduler) receive(m fetchedMsg) effect {
	if m.run != s.runID {
		log.Debugf("discarding result of stale run %s", m.run)
		return effectNone
	}
	switch s.state.(type) {
	case Fetching:
		if m.refill {
			return effectNone
		}
		if m.err != nil {
			log.Errorf("run %s: initial fetch failed: %v", s.runID, m.err)
			s.state = Idle{}
			return effectNone
		}
		s.appendSamples(m.samples)
		if s.seq.Len() == 0 {
			log.Warnf("run %s: no frames to play", s.runID)
			s.state = Idle{}
			return effectNone
		}
		now := s.clk.Now()
		s.state = Playing{LastTick: now}
		s.session.Resume(now)
		s.refilling = true
		return effectRefill
	case Playing:
		if !m.refill {
			return effectNone
		}
		s.refilling = false
		if m.err != nil {
			log.Warnf("run %s: refill failed, looping over %d frames: %v", s.runID, s.seq.Len(), m.err)
			return effectNone
		}
		if !s.appendSamples(m.samples) {
			log.Infof("run %s: telemetry exhausted at %d frames", s.runID, s.seq.Len())
			return effectNone
		}
		s.refilling = true
		return effectRefill
	default:
		log.Debugf("run %s: discarding fetch result while idle", m.run)
		return effectNone
	}
}

// appendSamples builds frames from samples and moves the refill window to
// the latest sample, whether or not it produced a frame. The window's lower
// bound is exclusive, so the next pass starts right after that millisecond.
// It reports whether the window moved.
func (s *Scheduler) appendSamples(samples []telemetry.Sample) bool {
	built := s.builder.Build(samples)
	added := s.seq.Append(built...)

	var latest int64
	for _, smp := range samples {
		latest = max(latest, smp.TimestampMS)
	}
	moved := false
	if latest > 0 {
		if next := utils.TimeFromMillis(latest); next.After(s.resume) {
			s.resume = next
			moved = true
		}
	}
	log.Infof("run %s: %d samples, %d frames built, %d appended, %d total",
		s.runID, len(samples), len(built), added, s.seq.Len())
	return moved
}

func (s *Scheduler) request(w telemetry.Window) telemetry.Request {
	return telemetry.Request{
		Participants:        s.opts.Participants,
		BatchSize:           s.opts.BatchSize,
		PerParticipantLimit: s.opts.PerParticipantLimit,
		Window:              w,
	}
}

// fetch issues the initial fetch of the run. It is not cancelled by Stop;
// its result is discarded instead.
func (s *Scheduler) fetch(ctx context.Context) {
	run, req := s.runID, s.request(telemetry.Window{})
	go func() {
		samples, err := s.fetcher.FetchBatch(ctx, req)
		s.post(ctx, fetchedMsg{run: run, samples: samples, err: err})
	}()
}

// scheduleRefill fetches the next window after RefillDelay unless the
// refill is cancelled first.
func (s *Scheduler) scheduleRefill(ctx context.Context) {
	s.cancelRefill()
	rctx, cancel := context.WithCancel(ctx)
	s.refillCancel = cancel

	run, req, delay := s.runID, s.request(telemetry.Window{From: s.resume}), s.opts.RefillDelay
	go func() {
		timer := s.clk.Timer(delay)
		select {
		case <-rctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		samples, err := s.fetcher.FetchBatch(rctx, req)
		if rctx.Err() != nil {
			return
		}
		s.post(ctx, fetchedMsg{run: run, refill: true, samples: samples, err: err})
	}()
}

func (s *Scheduler) cancelRefill() {
	if s.refillCancel != nil {
		s.refillCancel()
		s.refillCancel = nil
	}
}

func (s *Scheduler) syncTimers() {
	_, playing := s.state.(Playing)
	switch {
	case playing && s.ticker == nil:
		s.ticker = s.clk.Ticker(s.opts.TickInterval)
		s.frameTicker = s.clk.Ticker(s.opts.FrameInterval)
	case !playing && s.ticker != nil:
		s.stopTimers()
	}
}

func (s *Scheduler) stopTimers() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.frameTicker.Stop()
		s.ticker, s.frameTicker = nil, nil
	}
}

func (s *Scheduler) publish() Snapshot {
	snap := Snapshot{
		State:      s.state,
		RunID:      s.runID,
		FrameIndex: s.cursor.Index,
		FrameCount: s.seq.Len(),
		Blink:      s.blink,
		Elapsed:    s.session.Elapsed(),
		Refilling:  s.refilling,
	}
	if f, ok := s.seq.At(s.cursor.Index); ok {
		snap.Frame = &f
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return snap
}
