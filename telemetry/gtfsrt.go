package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// GTFSRTSource reads positions from a GTFS-Realtime VehiclePositions feed.
// A participant matches a vehicle whose descriptor id (or label, when the id
// is empty) equals the participant number. Longitude maps to X and latitude
// to Y.
type GTFSRTSource struct {
	client  *Client
	feedURL string
}

// NewGTFSRTSource creates a source for the feed at feedURL.
func NewGTFSRTSource(client *Client, feedURL string) *GTFSRTSource {
	return &GTFSRTSource{client: client, feedURL: feedURL}
}

// Locations implements Source.
func (s *GTFSRTSource) Locations(ctx context.Context, q Query) ([]Record, error) {
	body, status, err := s.client.Get(ctx, s.feedURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &SourceError{ParticipantID: q.ParticipantID, Status: status, URL: s.feedURL}
	}

	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(body, &fm); err != nil {
		return nil, &TransportError{Op: "decode", URL: s.feedURL, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	return vehicleRecords(&fm, q), nil
}

func vehicleRecords(fm *gtfsrtpb.FeedMessage, q Query) []Record {
	want := strconv.Itoa(q.ParticipantID)
	var records []Record
	for _, e := range fm.GetEntity() {
		vp := e.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}
		id := vp.GetVehicle().GetId()
		if id == "" {
			id = vp.GetVehicle().GetLabel()
		}
		if id != want {
			continue
		}
		ts := time.Unix(int64(vp.GetTimestamp()), 0).UTC()
		if vp.GetTimestamp() == 0 && fm.GetHeader() != nil {
			ts = time.Unix(int64(fm.GetHeader().GetTimestamp()), 0).UTC()
		}
		if !q.Window.Contains(ts) {
			continue
		}
		pos := vp.GetPosition()
		records = append(records, Record{
			X:             float64(pos.GetLongitude()),
			Y:             float64(pos.GetLatitude()),
			Date:          ts.Format(time.RFC3339Nano),
			ParticipantID: q.ParticipantID,
		})
	}
	return records
}
