package telemetry_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/circuit-led/telemetry"
	"github.com/theoremus-urban-solutions/circuit-led/utils"
)

func TestOpenF1Source_Locations(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/location" {
			http.NotFound(w, r)
			return
		}
		rawQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"x": 1234, "y": -567, "z": 10, "date": "2023-08-27T12:58:56.234000+00:00", "driver_number": 44, "session_key": 9149},
			{"x": 0, "y": 0, "date": "2023-08-27T12:58:56.500000+00:00", "driver_number": 44}
		]`))
	}))
	defer srv.Close()

	src := telemetry.NewOpenF1Source(telemetry.NewClient(5*time.Second), srv.URL+"/v1/")
	records, err := src.Locations(context.Background(), telemetry.Query{
		SessionKey:    "9149",
		ParticipantID: 44,
		Window:        telemetry.Window{From: sessionStart, To: sessionStart.Add(time.Minute)},
	})
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	r := records[0]
	if r.X != 1234 || r.Y != -567 || r.ParticipantID != 44 || r.Date != "2023-08-27T12:58:56.234000+00:00" {
		t.Errorf("unexpected record %+v", r)
	}

	for _, want := range []string{
		"session_key=9149",
		"driver_number=44",
		"date>2023-08-27T12:58:56.200",
		"date<2023-08-27T12:59:56.200",
	} {
		if !strings.Contains(rawQuery, want) {
			t.Errorf("query %q should contain %q", rawQuery, want)
		}
	}
}

func TestOpenF1Source_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantSource    bool
		wantTransport bool
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"detail":"nope"}`, wantSource: true},
		{name: "rate limited", status: http.StatusTooManyRequests, body: ``, wantSource: true},
		{name: "malformed json", status: http.StatusOK, body: `[{"x": 1,`, wantTransport: true},
		{name: "object instead of array", status: http.StatusOK, body: `{"x": 1}`, wantTransport: true},
		{name: "empty array", status: http.StatusOK, body: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			src := telemetry.NewOpenF1Source(telemetry.NewClient(time.Second), srv.URL)
			_, err := src.Locations(context.Background(), telemetry.Query{SessionKey: "1", ParticipantID: 16})

			var se *telemetry.SourceError
			var te *telemetry.TransportError
			switch {
			case tt.wantSource:
				if !errors.As(err, &se) {
					t.Fatalf("expected *SourceError, got %v", err)
				}
				if se.Status != tt.status || se.ParticipantID != 16 {
					t.Errorf("unexpected source error %+v", se)
				}
			case tt.wantTransport:
				if !errors.As(err, &te) {
					t.Fatalf("expected *TransportError, got %v", err)
				}
				if !errors.Is(err, telemetry.ErrMalformedPayload) {
					t.Errorf("expected ErrMalformedPayload in chain, got %v", err)
				}
			default:
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
			}
		})
	}
}

func TestOpenF1Source_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	src := telemetry.NewOpenF1Source(telemetry.NewClient(time.Second), url)
	_, err := src.Locations(context.Background(), telemetry.Query{ParticipantID: 1})
	var te *telemetry.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
}

func TestOpenF1Source_ReusesConnections(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			conns.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	src := telemetry.NewOpenF1Source(telemetry.NewClient(time.Second), srv.URL)
	for i := 0; i < 5; i++ {
		if _, err := src.Locations(context.Background(), telemetry.Query{ParticipantID: i + 1}); err != nil {
			t.Fatalf("Locations: %v", err)
		}
	}
	if got := conns.Load(); got != 1 {
		t.Errorf("expected sequential requests to share one connection, got %d", got)
	}
}

func feedBytes(t *testing.T) []byte {
	t.Helper()
	ts := uint64(sessionStart.Add(10 * time.Second).Unix())
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(ts),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("e1"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle:   &gtfsrtpb.VehicleDescriptor{Id: proto.String("44")},
					Position:  &gtfsrtpb.Position{Latitude: proto.Float32(42.5), Longitude: proto.Float32(23.25)},
					Timestamp: proto.Uint64(ts),
				},
			},
			{
				Id: proto.String("e2"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle:   &gtfsrtpb.VehicleDescriptor{Label: proto.String("16")},
					Position:  &gtfsrtpb.Position{Latitude: proto.Float32(42.75), Longitude: proto.Float32(23.5)},
					Timestamp: proto.Uint64(ts),
				},
			},
			{
				Id: proto.String("e3"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String("44")},
				},
			},
		},
	}
	b, err := proto.Marshal(fm)
	if err != nil {
		t.Fatalf("Marshal feed: %v", err)
	}
	return b
}

func TestGTFSRTSource_Locations(t *testing.T) {
	feed := feedBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(feed)
	}))
	defer srv.Close()

	src := telemetry.NewGTFSRTSource(telemetry.NewClient(time.Second), srv.URL)
	window := telemetry.Window{From: sessionStart, To: sessionStart.Add(time.Minute)}

	records, err := src.Locations(context.Background(), telemetry.Query{ParticipantID: 44, Window: window})
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 positioned record for 44, got %d", len(records))
	}
	if r := records[0]; r.X != 23.25 || r.Y != 42.5 || r.ParticipantID != 44 {
		t.Errorf("unexpected record %+v", r)
	}

	records, err = src.Locations(context.Background(), telemetry.Query{ParticipantID: 16, Window: window})
	if err != nil || len(records) != 1 {
		t.Fatalf("label should match participant 16: %v %v", records, err)
	}

	late := telemetry.Window{From: sessionStart.Add(10 * time.Second)}
	records, err = src.Locations(context.Background(), telemetry.Query{ParticipantID: 44, Window: late})
	if err != nil || len(records) != 0 {
		t.Errorf("exclusive lower bound should drop the record: %v %v", records, err)
	}
}

func TestGTFSRTSource_FetcherExhaustsSnapshot(t *testing.T) {
	feed := feedBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(feed)
	}))
	defer srv.Close()

	src := telemetry.NewGTFSRTSource(telemetry.NewClient(time.Second), srv.URL)
	f := telemetry.NewFetcher(src, "", telemetry.Window{From: sessionStart, To: sessionStart.Add(time.Hour)})

	samples, err := f.FetchBatch(context.Background(), telemetry.Request{Participants: []int{44, 16, 99}, PerParticipantLimit: 50})
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected one sample each for 44 and 16, got %d", len(samples))
	}
	if samples[0].ParticipantID != 44 || samples[1].ParticipantID != 16 {
		t.Errorf("unexpected order %+v", samples)
	}
}

func TestGTFSRTSource_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		_, _ = w.Write([]byte("definitely not protobuf \xff\xff\xff"))
	}))
	defer srv.Close()

	client := telemetry.NewClient(time.Second)

	_, err := telemetry.NewGTFSRTSource(client, srv.URL+"/gone").Locations(context.Background(), telemetry.Query{ParticipantID: 3})
	var se *telemetry.SourceError
	if !errors.As(err, &se) || se.Status != http.StatusGone {
		t.Errorf("expected 410 SourceError, got %v", err)
	}

	_, err = telemetry.NewGTFSRTSource(client, srv.URL+"/feed").Locations(context.Background(), telemetry.Query{ParticipantID: 3})
	var te *telemetry.TransportError
	if !errors.As(err, &te) {
		t.Errorf("expected TransportError for undecodable feed, got %v", err)
	}
}

func TestOpenF1Source_MicrosecondDatesPageOnce(t *testing.T) {
	dates := []string{
		"2023-08-27T12:58:57.100500+00:00",
		"2023-08-27T12:58:57.400700+00:00",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var from time.Time
		for _, kv := range strings.Split(r.URL.RawQuery, "&") {
			if v, ok := strings.CutPrefix(kv, "date>"); ok {
				parsed, err := utils.ParseTimestamp(v)
				if err != nil {
					t.Errorf("bad date filter %q: %v", v, err)
				}
				from = parsed
			}
		}
		var items []string
		for _, d := range dates {
			ts, _ := utils.ParseTimestamp(d)
			if ts.After(from) {
				items = append(items, `{"x": 10, "y": 20, "date": "`+d+`", "driver_number": 1}`)
			}
		}
		_, _ = w.Write([]byte("[" + strings.Join(items, ",") + "]"))
	}))
	defer srv.Close()

	src := telemetry.NewOpenF1Source(telemetry.NewClient(5*time.Second), srv.URL)
	f := telemetry.NewFetcher(src, "9149", telemetry.Window{From: sessionStart, To: sessionStart.Add(time.Hour)})

	samples, err := f.FetchBatch(context.Background(), telemetry.Request{Participants: []int{1}, PerParticipantLimit: 120})
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d: %+v", len(samples), samples)
	}
	if samples[0].TimestampMS == samples[1].TimestampMS {
		t.Errorf("record returned twice: %+v", samples)
	}
	if st := f.Stats(); st.Duplicates == 0 || st.Samples != 2 {
		t.Errorf("unexpected counters %+v", st)
	}
}
