// Package fetch runs the watermark-driven fetch sessions that pull trips
// from the timetable backend into the feed store.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zpcg-gtfs/poller/internal/db"
	"github.com/zpcg-gtfs/poller/internal/gtfs"
	"github.com/zpcg-gtfs/poller/internal/timetable"
)

// DefaultMaxTrips is the board size requested per departures/arrivals call
const DefaultMaxTrips = 600

// Reason explains why a session stopped
type Reason string

const (
	ReasonExhausted   Reason = "exhausted"
	ReasonStagnated   Reason = "stagnated"
	ReasonUpstream    Reason = "upstream"
	ReasonInterrupted Reason = "interrupted"
)

// Assembler turns trips into rows
type Assembler interface {
	Static() *gtfs.Batch
	Assemble(trip *timetable.Trip) (*gtfs.Batch, error)
}

// Sink persists a batch atomically
type Sink interface {
	WriteBatch(ctx context.Context, b *gtfs.Batch) (db.WriteStats, error)
}

// WatermarkStore persists the resume point of each station query
type WatermarkStore interface {
	Load(station string) (time.Time, bool, error)
	Save(station string, t time.Time) error
}

// Observer receives progress notifications
type Observer interface {
	BatchCommitted(station string, watermark time.Time, trips int, took time.Duration)
	SessionStopped(station string, reason string)
}

// Options tunes a loop
type Options struct {
	MaxTrips int
	Products timetable.Products
	Now      func() time.Time
	Observer Observer
}

// Result summarizes one session
type Result struct {
	Station string
	Reason  Reason
	Batches int
	Trips   int
	Start   time.Time
	End     time.Time
	Err     error
}

// Loop fetches batches for one station query at a time
type Loop struct {
	client timetable.Client
	asm    Assembler
	sink   Sink
	marks  WatermarkStore
	opts   Options
}

// NewLoop creates a fetch loop
func NewLoop(client timetable.Client, asm Assembler, sink Sink, marks WatermarkStore, opts Options) *Loop {
	if opts.MaxTrips <= 0 {
		opts.MaxTrips = DefaultMaxTrips
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loop{client: client, asm: asm, sink: sink, marks: marks, opts: opts}
}

// errInterrupted aborts a batch between trip detail calls
var errInterrupted = errors.New("interrupted")

// Run fetches batches for station until the backend has nothing newer, the
// backend fails, the watermark stops advancing or ctx is cancelled.
// Upstream failures end the session and are reported in Result.Err; the
// returned error is reserved for store failures.
func (l *Loop) Run(ctx context.Context, station string) (Result, error) {
	res := Result{Station: station}
	// Backend calls are never cut off mid-way; ctx is checked between calls.
	call := context.WithoutCancel(ctx)

	loc, err := l.client.ResolvePlace(call, station)
	if err != nil {
		log.Printf("Fetch[%s]: stopping, failed to resolve place: %v", station, err)
		return l.stop(res, ReasonUpstream, err), nil
	}

	mark, ok, err := l.marks.Load(station)
	if err != nil {
		return res, fmt.Errorf("failed to load watermark for %s: %w", station, err)
	}
	if !ok {
		mark = l.opts.Now()
	}
	mark = mark.Truncate(time.Second)
	res.Start, res.End = mark, mark
	log.Printf("Fetch[%s]: starting at %s (%s)", station, mark.Format(time.RFC3339), loc.Name)

	for {
		if ctx.Err() != nil {
			return l.stop(res, ReasonInterrupted, ctx.Err()), nil
		}

		started := time.Now()
		batch, next, empty, err := l.fetchBatch(ctx, call, station, loc, mark)
		switch {
		case errors.Is(err, errInterrupted):
			log.Printf("Fetch[%s]: interrupted, discarding current batch", station)
			return l.stop(res, ReasonInterrupted, ctx.Err()), nil
		case err != nil:
			log.Printf("Fetch[%s]: stopping because of %v", station, err)
			return l.stop(res, ReasonUpstream, err), nil
		case empty:
			log.Printf("Fetch[%s]: no more departures or arrivals after %s", station, mark.Format(time.RFC3339))
			return l.stop(res, ReasonExhausted, nil), nil
		}

		stats, err := l.sink.WriteBatch(call, batch)
		if err != nil {
			return res, fmt.Errorf("failed to write batch for %s: %w", station, err)
		}
		res.Batches++
		res.Trips += stats.Trips

		next = next.Truncate(time.Second)
		if !next.After(mark) {
			log.Printf("Fetch[%s]: watermark did not advance past %s", station, mark.Format(time.RFC3339))
			return l.stop(res, ReasonStagnated, nil), nil
		}

		if err := l.marks.Save(station, next); err != nil {
			return res, fmt.Errorf("failed to save watermark for %s: %w", station, err)
		}
		mark = next
		res.End = next

		log.Printf("Fetch[%s]: fetched until %s (%d trips, %d skipped)",
			station, next.Format(time.RFC3339), stats.Trips, stats.SkippedTrips)
		if l.opts.Observer != nil {
			l.opts.Observer.BatchCommitted(station, next, stats.Trips, time.Since(started))
		}
	}
}

// fetchBatch queries both boards from mark and assembles every trip they
// reference. next is the earlier of the two latest board instants.
func (l *Loop) fetchBatch(ctx, call context.Context, station string, loc timetable.Location, mark time.Time) (*gtfs.Batch, time.Time, bool, error) {
	departures, err := l.client.Departures(call, loc, mark, l.opts.MaxTrips, l.opts.Products)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	arrivals, err := l.client.Arrivals(call, loc, mark, l.opts.MaxTrips, l.opts.Products)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	if len(departures) == 0 && len(arrivals) == 0 {
		return nil, time.Time{}, true, nil
	}

	var next time.Time
	for _, legs := range [][]timetable.Leg{departures, arrivals} {
		if len(legs) == 0 {
			continue
		}
		if latest := latestLeg(legs); next.IsZero() || latest.Before(next) {
			next = latest
		}
	}

	batch := l.asm.Static()
	for _, id := range uniqueTripIDs(departures, arrivals) {
		if ctx.Err() != nil {
			return nil, time.Time{}, false, errInterrupted
		}

		trip, err := l.client.TripDetail(call, id)
		if err != nil {
			return nil, time.Time{}, false, err
		}

		rows, err := l.asm.Assemble(trip)
		if err != nil {
			log.Printf("Warning: Fetch[%s]: skipping trip %s: %v", station, id, err)
			continue
		}
		batch.Append(rows)
	}

	return batch, next, false, nil
}

func (l *Loop) stop(res Result, reason Reason, err error) Result {
	res.Reason = reason
	res.Err = err
	if l.opts.Observer != nil {
		l.opts.Observer.SessionStopped(res.Station, string(reason))
	}
	return res
}

func latestLeg(legs []timetable.Leg) time.Time {
	var latest time.Time
	for _, leg := range legs {
		if leg.When.After(latest) {
			latest = leg.When
		}
	}
	return latest
}

// uniqueTripIDs lists departure trips then arrival trips, first occurrence wins
func uniqueTripIDs(departures, arrivals []timetable.Leg) []string {
	seen := make(map[string]bool, len(departures)+len(arrivals))
	var ids []string
	for _, legs := range [][]timetable.Leg{departures, arrivals} {
		for _, leg := range legs {
			if seen[leg.TripID] {
				continue
			}
			seen[leg.TripID] = true
			ids = append(ids, leg.TripID)
		}
	}
	return ids
}
