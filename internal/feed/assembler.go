// Package feed turns fetched trips into GTFS rows.
package feed

import (
	"fmt"
	"log"
	"time"

	"github.com/zpcg-gtfs/poller/internal/gtfs"
	"github.com/zpcg-gtfs/poller/internal/identity"
	"github.com/zpcg-gtfs/poller/internal/resolve"
	"github.com/zpcg-gtfs/poller/internal/timetable"
)

// Default route colours
const (
	DefaultRouteColor     = "D82234"
	DefaultRouteTextColor = "F6F6F6"
)

// StopResolver maps a timetable stop onto its canonical location
type StopResolver interface {
	Resolve(stop timetable.Stop) resolve.Stop
}

// Options configures the rows the assembler produces
type Options struct {
	Agency         gtfs.Agency
	FeedInfo       gtfs.FeedInfo
	Location       *time.Location
	RouteColor     string
	RouteTextColor string

	// OnUnknownCategory is called for train categories without a route type mapping
	OnUnknownCategory func(category string)
	// OnSkippedStopover is called for stopovers carrying neither arrival nor departure
	OnSkippedStopover func(trip *timetable.Trip, stop timetable.Stop)
}

// Assembler builds GTFS rows from trips
type Assembler struct {
	resolver StopResolver
	registry *identity.Registry
	opts     Options
}

// New creates an assembler. Location defaults to UTC.
func New(resolver StopResolver, opts Options) *Assembler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RouteColor == "" {
		opts.RouteColor = DefaultRouteColor
	}
	if opts.RouteTextColor == "" {
		opts.RouteTextColor = DefaultRouteTextColor
	}
	if opts.Agency.Timezone == "" {
		opts.Agency.Timezone = opts.Location.String()
	}
	return &Assembler{
		resolver: resolver,
		registry: identity.NewRegistry(),
		opts:     opts,
	}
}

// Static returns the agency and feed_info rows
func (a *Assembler) Static() *gtfs.Batch {
	b := &gtfs.Batch{Agencies: []gtfs.Agency{a.opts.Agency}}
	if a.opts.FeedInfo.PublisherName != "" {
		b.FeedInfos = []gtfs.FeedInfo{a.opts.FeedInfo}
	}
	return b
}

// Assemble converts one trip into rows. It fails for trips without
// stopovers, for unsupported modes and for trip id collisions.
func (a *Assembler) Assemble(trip *timetable.Trip) (*gtfs.Batch, error) {
	if len(trip.Stopovers) == 0 {
		return nil, fmt.Errorf("trip %s has no stopovers", trip.ID)
	}

	category, number := SplitTripName(trip.Name)
	routeType, known, err := RouteType(trip.Mode, category)
	if err != nil {
		return nil, fmt.Errorf("failed to map route type of trip %s: %w", trip.ID, err)
	}
	if !known && a.opts.OnUnknownCategory != nil {
		a.opts.OnUnknownCategory(category)
	}

	tripID := identity.TripKey(trip.ID)
	serviceID := identity.ServiceKey(trip.ID)
	if err := a.registry.Check(tripID, trip.ID); err != nil {
		return nil, err
	}

	first := a.resolver.Resolve(trip.Stopovers[0].Stop)
	last := a.resolver.Resolve(trip.Stopovers[len(trip.Stopovers)-1].Stop)

	refDate := trip.Departure.In(a.opts.Location)
	exception := gtfs.ServiceAdded
	if trip.Cancelled {
		exception = gtfs.ServiceRemoved
	}

	b := &gtfs.Batch{
		Routes: []gtfs.Route{{
			ID:        trip.Name,
			AgencyID:  a.opts.Agency.ID,
			LongName:  first.Name + " - " + last.Name,
			Type:      routeType,
			Color:     a.opts.RouteColor,
			TextColor: a.opts.RouteTextColor,
		}},
		Trips: []gtfs.Trip{{
			RouteID:   trip.Name,
			ServiceID: serviceID,
			ID:        tripID,
			ShortName: number,
		}},
		CalendarDates: []gtfs.CalendarDate{{
			ServiceID:     serviceID,
			Date:          ServiceDate(refDate),
			ExceptionType: exception,
		}},
		Keys: []gtfs.TripKey{{TripID: tripID, BackendID: trip.ID}},
	}

	sequence := 1
	for _, so := range trip.Stopovers {
		arrival, departure, ok := stopoverTimes(so)
		if !ok {
			log.Printf("Warning: skipping stopover %q of trip %s without times", so.Stop.Name, trip.ID)
			if a.opts.OnSkippedStopover != nil {
				a.opts.OnSkippedStopover(trip, so.Stop)
			}
			continue
		}

		resolved := a.resolver.Resolve(so.Stop)
		b.Stops = append(b.Stops, gtfs.Stop{
			ID:           so.Stop.ID,
			Name:         resolved.Name,
			Lat:          resolved.Lat,
			Lon:          resolved.Lon,
			LocationType: 0,
			Timezone:     a.opts.Location.String(),
		})
		b.StopTimes = append(b.StopTimes, gtfs.StopTime{
			TripID:        tripID,
			ArrivalTime:   TimeToGTFS(refDate, arrival.In(a.opts.Location)),
			DepartureTime: TimeToGTFS(refDate, departure.In(a.opts.Location)),
			StopID:        so.Stop.ID,
			StopSequence:  sequence,
			Timepoint:     1,
		})
		sequence++
	}

	return b, nil
}

// stopoverTimes fills a missing arrival from the departure and vice versa
func stopoverTimes(so timetable.Stopover) (arrival, departure time.Time, ok bool) {
	switch {
	case so.Arrival != nil && so.Departure != nil:
		return *so.Arrival, *so.Departure, true
	case so.Arrival != nil:
		return *so.Arrival, *so.Arrival, true
	case so.Departure != nil:
		return *so.Departure, *so.Departure, true
	}
	return time.Time{}, time.Time{}, false
}
