// Package playback drives a run: it fetches telemetry, builds frames, and
// steps a cursor through them on a fixed clock while refilling in the
// background.
//
// A single goroutine (Scheduler.Run) owns the playback state, the cursor,
// the blink flag and the session clock. Commands, timer ticks and fetch
// results all arrive there as messages, so no other goroutine ever writes
// them. Fetches and the delayed refill run in their own goroutines and only
// post results back. The frame sequence is additionally guarded by its own
// lock so renderers can read it concurrently.
//
// States:
//
//	Idle --start--> Fetching --frames--> Playing
//	  ^                |                    |
//	  +---empty/error--+                    |
//	  +-------------stop--------------------+
package playback
