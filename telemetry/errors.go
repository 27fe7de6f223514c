package telemetry

import (
	"errors"
	"fmt"
)

// ErrNoParticipants is returned when a request names no participants.
var ErrNoParticipants = errors.New("telemetry: no participants requested")

// ErrMalformedPayload marks a response body that could not be decoded.
var ErrMalformedPayload = errors.New("malformed payload")

// TransportError is a connection, protocol or payload failure. It aborts the
// FetchBatch call in progress.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("telemetry: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SourceError is a non-success response for one participant.
type SourceError struct {
	ParticipantID int
	Status        int
	URL           string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("telemetry: participant %d: HTTP %d from %s", e.ParticipantID, e.Status, e.URL)
}

// DataError describes a record dropped before it became a Sample.
type DataError struct {
	ParticipantID int
	Reason        string
	Err           error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("telemetry: participant %d: %s: %v", e.ParticipantID, e.Reason, e.Err)
	}
	return fmt.Sprintf("telemetry: participant %d: %s", e.ParticipantID, e.Reason)
}

func (e *DataError) Unwrap() error { return e.Err }
