package timetable

import (
	"context"
	"errors"
	"time"
)

// ErrUpstream marks a transport or protocol failure reported by the timetable backend.
// A fetch session that sees it stops and keeps its last persisted watermark.
var ErrUpstream = errors.New("timetable backend error")

// Mode is the transport mode of a trip as reported by the backend
type Mode string

const (
	ModeTrain Mode = "train"
	ModeBus   Mode = "bus"
)

// Location is a place the backend can produce departure and arrival boards for
type Location struct {
	ID   string
	Name string
}

// Stop is a stop as reported by the backend. RefCode carries an external
// station number (e.g. IBNR/UIC) when the backend exposes one.
type Stop struct {
	ID      string
	Name    string
	RefCode string
	Lat     float64
	Lon     float64
}

// Stopover is one stop along a trip
type Stopover struct {
	Stop      Stop
	Arrival   *time.Time
	Departure *time.Time
	Cancelled bool
}

// Trip is a backend trip with its stopovers in travel order
type Trip struct {
	ID        string
	Name      string
	Mode      Mode
	Cancelled bool
	Departure time.Time // reference departure of the whole trip
	Stopovers []Stopover
}

// Leg is a single departure or arrival board entry
type Leg struct {
	TripID string
	When   time.Time
}

// Products selects which product classes a board query returns
type Products map[string]bool

// Client is the capability the fetch loop needs from the timetable backend.
// Implementations wrap every failure in ErrUpstream.
type Client interface {
	ResolvePlace(ctx context.Context, name string) (Location, error)
	Departures(ctx context.Context, loc Location, from time.Time, maxCount int, products Products) ([]Leg, error)
	Arrivals(ctx context.Context, loc Location, from time.Time, maxCount int, products Products) ([]Leg, error)
	TripDetail(ctx context.Context, id string) (*Trip, error)
}
