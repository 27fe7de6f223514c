package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/theoremus-urban-solutions/circuit-led/utils"
)

// Source answers location queries for one participant at a time.
type Source interface {
	Locations(ctx context.Context, q Query) ([]Record, error)
}

// OpenF1Source reads the OpenF1 /location endpoint.
type OpenF1Source struct {
	client  *Client
	baseURL string
}

// NewOpenF1Source creates a source rooted at baseURL, e.g. "https://api.openf1.org/v1".
func NewOpenF1Source(client *Client, baseURL string) *OpenF1Source {
	return &OpenF1Source{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// locationURL builds the query. The API takes its date filters as raw
// "date>" / "date<" keys, so they are appended by hand.
func (s *OpenF1Source) locationURL(q Query) string {
	var b strings.Builder
	b.WriteString(s.baseURL)
	b.WriteString("/location?session_key=")
	b.WriteString(url.QueryEscape(q.SessionKey))
	fmt.Fprintf(&b, "&driver_number=%d", q.ParticipantID)
	if !q.Window.From.IsZero() {
		b.WriteString("&date>")
		b.WriteString(utils.FormatQueryTime(q.Window.From))
	}
	if !q.Window.To.IsZero() {
		b.WriteString("&date<")
		b.WriteString(utils.FormatQueryTime(q.Window.To))
	}
	return b.String()
}

// Locations implements Source.
func (s *OpenF1Source) Locations(ctx context.Context, q Query) ([]Record, error) {
	u := s.locationURL(q)
	log.Debugf("GET %s", u)

	body, status, err := s.client.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &SourceError{ParticipantID: q.ParticipantID, Status: status, URL: u}
	}
	return parseLocations(body, u)
}

func parseLocations(body []byte, u string) ([]Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, &TransportError{Op: "decode", URL: u, Err: ErrMalformedPayload}
	}
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, &TransportError{Op: "decode", URL: u, Err: fmt.Errorf("%w: expected array, got %s", ErrMalformedPayload, res.Type)}
	}
	arr := res.Array()
	records := make([]Record, 0, len(arr))
	for _, v := range arr {
		records = append(records, Record{
			X:             v.Get("x").Float(),
			Y:             v.Get("y").Float(),
			Date:          v.Get("date").String(),
			ParticipantID: int(v.Get("driver_number").Int()),
		})
	}
	return records, nil
}
