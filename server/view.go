package server

import (
	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/circuit-led/frames"
	"github.com/theoremus-urban-solutions/circuit-led/playback"
	"github.com/theoremus-urban-solutions/circuit-led/track"
	"github.com/theoremus-urban-solutions/circuit-led/utils"
)

type playbackView struct {
	State      string        `json:"state"`
	RunID      string        `json:"run_id,omitempty"`
	FrameIndex int           `json:"frame_index"`
	FrameCount int           `json:"frame_count"`
	Blink      bool          `json:"blink"`
	Elapsed    string        `json:"elapsed"`
	ElapsedMS  int64         `json:"elapsed_ms"`
	Refilling  bool          `json:"refilling"`
	Frame      *frames.Frame `json:"frame,omitempty"`
}

func newPlaybackView(snap playback.Snapshot) playbackView {
	v := playbackView{
		State:      snap.StateName(),
		FrameIndex: snap.FrameIndex,
		FrameCount: snap.FrameCount,
		Blink:      snap.Blink,
		Elapsed:    utils.FormatElapsed(snap.Elapsed),
		ElapsedMS:  snap.Elapsed.Milliseconds(),
		Refilling:  snap.Refilling,
		Frame:      snap.Frame,
	}
	if snap.RunID != uuid.Nil {
		v.RunID = snap.RunID.String()
	}
	return v
}

type trackView struct {
	Markers []track.Marker `json:"markers"`
	Bounds  track.Bounds   `json:"bounds"`
}

type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
	Frames int    `json:"frames"`
}

type commandResponse struct {
	Accepted string `json:"accepted"`
}

type errorResponse struct {
	Error string `json:"error"`
}
