package frames

import (
	"sort"

	"github.com/theoremus-urban-solutions/circuit-led/internal"
	"github.com/theoremus-urban-solutions/circuit-led/participant"
	"github.com/theoremus-urban-solutions/circuit-led/telemetry"
	"github.com/theoremus-urban-solutions/circuit-led/track"
)

var log = internal.Logger(internal.LogFrames)

// Palette resolves a participant to its board color.
type Palette interface {
	Color(participantID int) (participant.Color, bool)
}

// Builder converts samples to frames using a track index and a palette.
type Builder struct {
	index   track.Index
	palette Palette
}

// NewBuilder creates a builder.
func NewBuilder(index track.Index, palette Palette) *Builder {
	return &Builder{index: index, palette: palette}
}

// Build groups samples into frames ordered by timestamp. Samples with equal
// timestamps keep their arrival order, so the later one wins a shared marker.
// Samples from participants missing in the palette are skipped. The input
// slice is not modified.
func (b *Builder) Build(samples []telemetry.Sample) []Frame {
	if len(samples) == 0 {
		return nil
	}
	sorted := make([]telemetry.Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMS < sorted[j].TimestampMS
	})

	var out []Frame
	var open *Frame
	unknown := map[int]int{}
	for _, s := range sorted {
		color, ok := b.palette.Color(s.ParticipantID)
		if !ok {
			unknown[s.ParticipantID]++
			continue
		}
		marker := b.index.Nearest(s.Position)
		if open == nil || open.TimestampMS != s.TimestampMS {
			if open != nil {
				out = append(out, *open)
			}
			f := newFrame(s.TimestampMS)
			open = &f
		}
		open.MarkerColors[marker] = color
	}
	if open != nil {
		out = append(out, *open)
	}

	for id, n := range unknown {
		log.Warnf("participant %d not in table, skipped %d samples", id, n)
	}
	return out
}
