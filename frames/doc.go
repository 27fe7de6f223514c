// Package frames turns time-ordered telemetry samples into display frames.
//
// A Frame maps marker ids to the color of the participant nearest to that
// marker at one timestamp. Build is pure: it sorts a copy of its input, groups
// samples sharing a timestamp into one frame (last write per marker wins) and
// never performs I/O. A Sequence is the append-only, strictly increasing list
// of frames a playback run consumes by index.
package frames
