package resolve

import (
	"testing"

	"github.com/zpcg-gtfs/poller/internal/stations"
	"github.com/zpcg-gtfs/poller/internal/timetable"
)

// countingIndex wraps a real index and counts scans
type countingIndex struct {
	*stations.Index
	nearbyCalls int
	refCalls    int
}

func (c *countingIndex) Nearby(lat, lon, radiusSq float64) []stations.Record {
	c.nearbyCalls++
	return c.Index.Nearby(lat, lon, radiusSq)
}

func (c *countingIndex) ByRef(code string) []stations.Record {
	c.refCalls++
	return c.Index.ByRef(code)
}

func testIndex() *countingIndex {
	return &countingIndex{Index: stations.NewIndex([]stations.Record{
		{ID: "node/1", Lat: 42.4410, Lon: 19.2627, Tags: map[string]string{
			"name": "Подгорица", "name:sr-Latn": "Podgorica", "railway": "station",
		}},
		{ID: "node/2", Lat: 42.4409, Lon: 19.2625, Tags: map[string]string{
			"name": "Podgorica teretna", "railway": "yard",
		}},
		{ID: "node/3", Lat: 42.0970, Lon: 19.0956, Tags: map[string]string{
			"name": "Bar", "railway": "station", "uic_ref": "7900120",
		}},
		{ID: "node/4", Lat: 42.4650, Lon: 19.2710, Tags: map[string]string{
			"name": "Zeta", "railway": "halt",
		}},
	})}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Podgorica", "podgorica"},
		{"Podgorica (ZPCG)", "podgorica"},
		{"Bijelo Polje", "bijelo polje"},
		{"Žabljak", "zabljak"},
		{"Đurđevića Tara", "djurdjevica tara"},
		{"Zeta stajalište", "zeta"},
		{"Bar - Luka", "bar luka"},
		{"  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeName(tt.in, []string{"stajaliste"}); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNamesMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"podgorica", "podgorica", true},
		{"podgorica", "podgorica teretna", true},
		{"kolasin", "kolasina", true},
		{"bar", "zeta", false},
		{"", "bar", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := NamesMatch(tt.a, tt.b); got != tt.want {
				t.Errorf("NamesMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestResolvePrefersActiveStation(t *testing.T) {
	r := New(testIndex(), nil, Options{})

	got := r.Resolve(timetable.Stop{ID: "7900100", Name: "Podgorica", Lat: 42.4411, Lon: 19.2628})

	if !got.Matched {
		t.Fatal("expected a match")
	}
	if got.Name != "Podgorica" {
		t.Errorf("expected sr-Latn name Podgorica, got %q", got.Name)
	}
	if got.Lat != 42.4410 || got.Lon != 19.2627 {
		t.Errorf("expected station coordinates, got %f, %f", got.Lat, got.Lon)
	}
}

func TestResolveReferenceCodeWins(t *testing.T) {
	r := New(testIndex(), nil, Options{})

	// Name and position point at Podgorica but the reference code says Bar
	got := r.Resolve(timetable.Stop{ID: "7900120", RefCode: "7900120", Name: "Podgorica", Lat: 42.4411, Lon: 19.2628})

	if got.Name != "Bar" {
		t.Errorf("expected reference match Bar, got %q", got.Name)
	}
}

func TestResolveQualifierStripped(t *testing.T) {
	r := New(testIndex(), nil, Options{StopQualifiers: []string{"stajaliste"}})

	got := r.Resolve(timetable.Stop{Name: "Zeta stajalište", Lat: 42.4652, Lon: 19.2712})

	if !got.Matched || got.Name != "Zeta" {
		t.Errorf("expected Zeta, got %+v", got)
	}
}

func TestResolveFallback(t *testing.T) {
	var missed []timetable.Stop
	r := New(testIndex(), nil, Options{OnMiss: func(s timetable.Stop) { missed = append(missed, s) }})

	stop := timetable.Stop{Name: "Virpazar", Lat: 42.2460, Lon: 19.0930}
	got := r.Resolve(stop)

	if got.Matched {
		t.Error("expected no match")
	}
	if got.Name != "Virpazar" || got.Lat != 42.2460 || got.Lon != 19.0930 {
		t.Errorf("expected raw stop data, got %+v", got)
	}

	r.Resolve(stop)
	if len(missed) != 1 {
		t.Errorf("expected OnMiss once per coordinate pair, got %d", len(missed))
	}
}

func TestResolveUsesCache(t *testing.T) {
	idx := testIndex()
	cache := NewCache()
	r := New(idx, cache, Options{})

	stop := timetable.Stop{Name: "Podgorica", Lat: 42.4411, Lon: 19.2628}
	first := r.Resolve(stop)
	second := r.Resolve(stop)

	if first != second {
		t.Errorf("expected identical results, got %+v and %+v", first, second)
	}
	if idx.nearbyCalls != 1 {
		t.Errorf("expected one index scan, got %d", idx.nearbyCalls)
	}
	if cache.Len() != 1 || cache.Hits() != 1 {
		t.Errorf("expected 1 entry and 1 hit, got %d and %d", cache.Len(), cache.Hits())
	}
}
