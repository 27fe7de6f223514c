package telemetry

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/circuit-led/internal"
	"github.com/theoremus-urban-solutions/circuit-led/track"
	"github.com/theoremus-urban-solutions/circuit-led/utils"
)

var log = internal.Logger(internal.LogTelemetry)

// Stats counts what the Fetcher requested, kept and dropped since creation.
type Stats struct {
	Requests      int64
	Samples       int64
	Sentinel      int64
	BadTimestamp  int64
	Duplicates    int64
	SourceErrors  int64
	TransportErrs int64
}

type counters struct {
	requests, samples, sentinel, badTimestamp, duplicates, sourceErrors, transportErrs atomic.Int64
}

// Fetcher pulls samples for many participants from a Source. It holds no
// state between calls apart from its counters; the Source owns the pooled
// connection.
type Fetcher struct {
	source     Source
	sessionKey string
	window     Window
	stats      counters
}

// NewFetcher creates a fetcher for one session and its window.
func NewFetcher(source Source, sessionKey string, window Window) *Fetcher {
	return &Fetcher{source: source, sessionKey: sessionKey, window: window}
}

// Window returns the session window.
func (f *Fetcher) Window() Window { return f.window }

// Stats returns a snapshot of the counters.
func (f *Fetcher) Stats() Stats {
	return Stats{
		Requests:      f.stats.requests.Load(),
		Samples:       f.stats.samples.Load(),
		Sentinel:      f.stats.sentinel.Load(),
		BadTimestamp:  f.stats.badTimestamp.Load(),
		Duplicates:    f.stats.duplicates.Load(),
		SourceErrors:  f.stats.sourceErrors.Load(),
		TransportErrs: f.stats.transportErrs.Load(),
	}
}

func (f *Fetcher) resolve(w Window) Window {
	if w.From.IsZero() {
		w.From = f.window.From
	}
	if w.To.IsZero() {
		w.To = f.window.To
	}
	return w
}

// FetchBatch fetches samples for every participant in req. Participants are
// processed in consecutive batches of req.BatchSize; members of one batch are
// fetched concurrently. A SourceError drops that participant for this pass
// only. A TransportError aborts the call. Samples are returned grouped by
// participant in request order, not sorted by time.
func (f *Fetcher) FetchBatch(ctx context.Context, req Request) ([]Sample, error) {
	if len(req.Participants) == 0 {
		return nil, ErrNoParticipants
	}
	size := req.BatchSize
	if size <= 0 || size > len(req.Participants) {
		size = len(req.Participants)
	}
	window := f.resolve(req.Window)

	var out []Sample
	for start := 0; start < len(req.Participants); start += size {
		end := min(start+size, len(req.Participants))
		batch := req.Participants[start:end]

		results := make([][]Sample, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, id := range batch {
			g.Go(func() error {
				samples, err := f.fetchParticipant(gctx, id, req.PerParticipantLimit, window)
				results[i] = samples
				if err == nil {
					return nil
				}
				var se *SourceError
				if errors.As(err, &se) {
					f.stats.sourceErrors.Add(1)
					log.Warnf("participant %d: HTTP %d, keeping %d samples collected before the failure", id, se.Status, len(samples))
					return nil
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			f.stats.transportErrs.Add(1)
			return nil, err
		}
		for _, r := range results {
			out = append(out, r...)
		}
	}
	f.stats.samples.Add(int64(len(out)))
	return out, nil
}

// fetchParticipant pages through window, moving the lower bound past the
// latest record seen, until limit samples are kept or a page adds nothing new.
// Records at or before the current lower bound are dropped as repeats.
func (f *Fetcher) fetchParticipant(ctx context.Context, id, limit int, window Window) ([]Sample, error) {
	var out []Sample
	from := window.From
	for limit <= 0 || len(out) < limit {
		f.stats.requests.Add(1)
		records, err := f.source.Locations(ctx, Query{
			SessionKey:    f.sessionKey,
			ParticipantID: id,
			Window:        Window{From: from, To: window.To},
		})
		if err != nil {
			return out, err
		}
		if len(records) == 0 {
			break
		}

		latest := from
		kept := 0
		for _, r := range records {
			ts, err := utils.ParseTimestamp(r.Date)
			if err != nil {
				f.stats.badTimestamp.Add(1)
				log.Debug((&DataError{ParticipantID: id, Reason: "unparsable timestamp", Err: err}).Error())
				continue
			}
			// date filters carry milliseconds only, so a record with a finer
			// timestamp comes back on the page after it
			if !ts.After(from) {
				f.stats.duplicates.Add(1)
				continue
			}
			if ts.After(latest) {
				latest = ts
			}
			if r.X == 0 || r.Y == 0 {
				f.stats.sentinel.Add(1)
				continue
			}
			pid := r.ParticipantID
			if pid == 0 {
				pid = id
			}
			out = append(out, Sample{
				ParticipantID: pid,
				Position:      track.Point{X: r.X, Y: r.Y},
				TimestampMS:   ts.UnixMilli(),
			})
			kept++
		}
		log.Debugf("participant %d: %d records, %d kept", id, len(records), kept)

		if !latest.After(from) {
			break
		}
		from = latest
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
