package utils

import (
	"fmt"
	"strings"
	"time"
)

// QueryTimeLayout is the millisecond layout the telemetry API expects in date filters.
const QueryTimeLayout = "2006-01-02T15:04:05.000"

// Timestamps without an offset are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a telemetry date string such as
// "2023-08-27T12:58:56.234000+00:00" or "2023-08-27T12:58:56.200".
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseTimestampMillis parses a telemetry date string into Unix milliseconds.
func ParseTimestampMillis(s string) (int64, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// TimeFromMillis converts Unix milliseconds to a UTC time.
func TimeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// FormatQueryTime formats t for use in a telemetry date filter.
func FormatQueryTime(t time.Time) string {
	return t.UTC().Format(QueryTimeLayout)
}

// FormatElapsed renders a duration as HH:MM:SS.cc.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	const (
		minute = 60
		hour   = 60 * minute
	)
	seconds := int64(d / time.Second)
	centis := int64(d%time.Second) / int64(10*time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d.%02d", seconds/hour, (seconds%hour)/minute, seconds%minute, centis)
}
