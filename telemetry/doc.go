// Package telemetry retrieves raw position samples for a set of participants.
//
// A Source answers one query for one participant over a time window. The
// OpenF1 source speaks the OpenF1 JSON location API; the GTFS-RT source reads
// a GTFS-Realtime VehiclePositions feed. The Fetcher partitions participants
// into bounded batches, pages each participant through the window until a
// per-participant limit is reached or the source runs dry, and returns the
// valid samples unsorted.
//
// Failures are classified:
//   - TransportError: connection or payload failure, fatal for the current call
//   - SourceError: non-success response for one participant, logged and skipped
//   - DataError: one bad record (sentinel position, bad timestamp), dropped
package telemetry
