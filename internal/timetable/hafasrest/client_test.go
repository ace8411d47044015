package hafasrest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zpcg-gtfs/poller/internal/timetable"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") != "Podgorica" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"type":"stop","id":"7900151","name":"Podgorica","location":{"latitude":42.4411,"longitude":19.2628}}]`))
	})
	mux.HandleFunc("/stops/7900151/departures", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("results") != "600" || r.URL.Query().Get("bus") != "false" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"departures":[
			{"tripId":"1|100","plannedWhen":"2024-06-01T08:00:00+02:00","when":"2024-06-01T08:05:00+02:00"},
			{"tripId":"","plannedWhen":"2024-06-01T09:00:00+02:00"},
			{"tripId":"1|101","plannedWhen":null,"when":"2024-06-01T10:00:00+02:00"}
		]}`))
	})
	mux.HandleFunc("/stops/7900151/arrivals", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"msg":"HAFAS error"}`))
	})
	mux.HandleFunc("/trips/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"trip":{"id":"1|100","line":{"name":"R 6100","mode":"train","product":"regional"},
			"cancelled":false,"plannedDeparture":"2024-06-01T08:00:00+02:00",
			"stopovers":[
				{"stop":{"id":"7900151","name":"Podgorica","location":{"latitude":42.4411,"longitude":19.2628}},
				 "plannedDeparture":"2024-06-01T08:00:00+02:00"},
				{"stop":{"id":"A=1@O=Zeta","name":"Zeta","location":{"latitude":42.39,"longitude":19.2}},
				 "plannedArrival":"2024-06-01T08:20:00+02:00","plannedDeparture":"2024-06-01T08:21:00+02:00"}
			]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolvePlace(t *testing.T) {
	c := NewClient(newTestServer(t).URL, 5*time.Second)

	loc, err := c.ResolvePlace(context.Background(), "Podgorica")
	if err != nil {
		t.Fatalf("ResolvePlace failed: %v", err)
	}
	if loc.ID != "7900151" {
		t.Errorf("loc.ID = %q, want 7900151", loc.ID)
	}

	_, err = c.ResolvePlace(context.Background(), "Nowhere")
	if !errors.Is(err, timetable.ErrUpstream) {
		t.Errorf("expected ErrUpstream for unknown place, got %v", err)
	}
}

func TestDeparturesSkipsIncompleteEntries(t *testing.T) {
	c := NewClient(newTestServer(t).URL, 5*time.Second)
	products := timetable.Products{"regional": true, "bus": false}

	legs, err := c.Departures(context.Background(), timetable.Location{ID: "7900151"}, time.Now(), 600, products)
	if err != nil {
		t.Fatalf("Departures failed: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}

	// Planned time wins over the realtime one
	if got := legs[0].When.Format("15:04"); got != "08:00" {
		t.Errorf("legs[0].When = %s, want 08:00", got)
	}
	if got := legs[1].When.Format("15:04"); got != "10:00" {
		t.Errorf("legs[1].When = %s, want 10:00", got)
	}
}

func TestArrivalsUpstreamError(t *testing.T) {
	c := NewClient(newTestServer(t).URL, 5*time.Second)

	_, err := c.Arrivals(context.Background(), timetable.Location{ID: "7900151"}, time.Now(), 600, nil)
	if !errors.Is(err, timetable.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestTripDetail(t *testing.T) {
	c := NewClient(newTestServer(t).URL, 5*time.Second)

	trip, err := c.TripDetail(context.Background(), "1|100")
	if err != nil {
		t.Fatalf("TripDetail failed: %v", err)
	}

	if trip.Name != "R 6100" || trip.Mode != timetable.ModeTrain {
		t.Errorf("unexpected trip header: name=%q mode=%q", trip.Name, trip.Mode)
	}
	if len(trip.Stopovers) != 2 {
		t.Fatalf("expected 2 stopovers, got %d", len(trip.Stopovers))
	}

	first := trip.Stopovers[0]
	if first.Stop.RefCode != "7900151" {
		t.Errorf("numeric stop id should become the ref code, got %q", first.Stop.RefCode)
	}
	if first.Arrival != nil {
		t.Errorf("first stopover should have no arrival")
	}

	second := trip.Stopovers[1]
	if second.Stop.RefCode != "" {
		t.Errorf("non-numeric stop id must not become a ref code, got %q", second.Stop.RefCode)
	}
	if second.Arrival == nil || second.Arrival.Format("15:04") != "08:20" {
		t.Errorf("second stopover arrival = %v, want 08:20", second.Arrival)
	}
}

func TestIsStationNumber(t *testing.T) {
	tests := []struct {
		id       string
		expected bool
	}{
		{"7900151", true},
		{"8000105", true},
		{"12345", false},
		{"A=1@O=Zeta", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			if got := isStationNumber(tc.id); got != tc.expected {
				t.Errorf("isStationNumber(%q) = %v, expected %v", tc.id, got, tc.expected)
			}
		})
	}
}
