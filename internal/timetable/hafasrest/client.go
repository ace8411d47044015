package hafasrest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zpcg-gtfs/poller/internal/timetable"
)

// Client talks to a hafas-rest-api compatible backend (db-rest, transport.rest)
type Client struct {
	baseURL string
	client  *http.Client
	// Duration is the board window in minutes sent with departure/arrival queries.
	// The backend caps the result count separately.
	Duration int
}

// NewClient creates a new backend client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		Duration: 24 * 60,
	}
}

// ResolvePlace returns the best matching stop for a free-text name
func (c *Client) ResolvePlace(ctx context.Context, name string) (timetable.Location, error) {
	q := url.Values{}
	q.Set("query", name)
	q.Set("results", "1")
	q.Set("stops", "true")
	q.Set("addresses", "false")
	q.Set("poi", "false")

	var locations []apiLocation
	if err := c.getJSON(ctx, "/locations", q, &locations); err != nil {
		return timetable.Location{}, err
	}
	if len(locations) == 0 {
		return timetable.Location{}, fmt.Errorf("%w: no location found for %q", timetable.ErrUpstream, name)
	}

	return timetable.Location{ID: locations[0].ID, Name: locations[0].Name}, nil
}

// Departures returns up to maxCount departures at loc starting at from
func (c *Client) Departures(ctx context.Context, loc timetable.Location, from time.Time, maxCount int, products timetable.Products) ([]timetable.Leg, error) {
	var resp apiDepartures
	path := "/stops/" + url.PathEscape(loc.ID) + "/departures"
	if err := c.getJSON(ctx, path, c.boardQuery(from, maxCount, products), &resp); err != nil {
		return nil, err
	}
	return toLegs(resp.Departures), nil
}

// Arrivals returns up to maxCount arrivals at loc starting at from
func (c *Client) Arrivals(ctx context.Context, loc timetable.Location, from time.Time, maxCount int, products timetable.Products) ([]timetable.Leg, error) {
	var resp apiArrivals
	path := "/stops/" + url.PathEscape(loc.ID) + "/arrivals"
	if err := c.getJSON(ctx, path, c.boardQuery(from, maxCount, products), &resp); err != nil {
		return nil, err
	}
	return toLegs(resp.Arrivals), nil
}

// TripDetail fetches a trip with all its stopovers
func (c *Client) TripDetail(ctx context.Context, id string) (*timetable.Trip, error) {
	q := url.Values{}
	q.Set("stopovers", "true")
	q.Set("polyline", "false")
	q.Set("remarks", "false")

	var resp apiTripResponse
	if err := c.getJSON(ctx, "/trips/"+url.PathEscape(id), q, &resp); err != nil {
		return nil, err
	}

	return toTrip(resp.Trip), nil
}

func (c *Client) boardQuery(from time.Time, maxCount int, products timetable.Products) url.Values {
	q := url.Values{}
	q.Set("when", from.Format(time.RFC3339))
	q.Set("results", strconv.Itoa(maxCount))
	q.Set("duration", strconv.Itoa(c.Duration))
	q.Set("remarks", "false")
	for product, enabled := range products {
		q.Set(product, strconv.FormatBool(enabled))
	}
	return q
}

// getJSON performs a GET request and decodes the JSON body into v
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", timetable.ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to fetch %s: %v", timetable.ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned status %d: %s", timetable.ErrUpstream, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", timetable.ErrUpstream, path, err)
	}

	return nil
}

func toLegs(entries []apiBoardEntry) []timetable.Leg {
	legs := make([]timetable.Leg, 0, len(entries))
	for _, e := range entries {
		when := firstTime(e.PlannedWhen, e.When)
		if e.TripID == "" || when == nil {
			log.Printf("Warning: skipping board entry without trip id or time (trip=%q)", e.TripID)
			continue
		}
		legs = append(legs, timetable.Leg{TripID: e.TripID, When: *when})
	}
	return legs
}

func toTrip(t apiTrip) *timetable.Trip {
	trip := &timetable.Trip{
		ID:        t.ID,
		Cancelled: t.Cancelled,
	}
	if t.Line != nil {
		trip.Name = t.Line.Name
		trip.Mode = timetable.Mode(t.Line.Mode)
	}
	if dep := firstTime(t.PlannedDeparture, t.Departure); dep != nil {
		trip.Departure = *dep
	}

	for _, so := range t.Stopovers {
		stopover := timetable.Stopover{
			Stop:      toStop(so.Stop),
			Arrival:   firstTime(so.PlannedArrival, so.Arrival),
			Departure: firstTime(so.PlannedDeparture, so.Departure),
			Cancelled: so.Cancelled,
		}
		trip.Stopovers = append(trip.Stopovers, stopover)
	}

	// Some backends omit the trip-level departure; fall back to the first stopover.
	if trip.Departure.IsZero() && len(trip.Stopovers) > 0 {
		first := trip.Stopovers[0]
		if dep := firstTime(first.Departure, first.Arrival); dep != nil {
			trip.Departure = *dep
		}
	}

	return trip
}

func toStop(l apiLocation) timetable.Stop {
	stop := timetable.Stop{ID: l.ID, Name: l.Name}
	if l.Location != nil {
		stop.Lat = l.Location.Latitude
		stop.Lon = l.Location.Longitude
	}
	if isStationNumber(l.ID) {
		stop.RefCode = l.ID
	}
	return stop
}

// isStationNumber reports whether a backend stop id is a plain station number (IBNR/UIC)
func isStationNumber(id string) bool {
	if len(id) < 6 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func firstTime(candidates ...*time.Time) *time.Time {
	for _, t := range candidates {
		if t != nil && !t.IsZero() {
			return t
		}
	}
	return nil
}
