package resolve

import (
	"fmt"
	"log"

	"github.com/zpcg-gtfs/poller/internal/stations"
	"github.com/zpcg-gtfs/poller/internal/timetable"
)

// DefaultRadiusSq is the squared coordinate distance (degrees²) within which a
// station is considered near a timetable stop. Roughly 600 m at 42°N.
const DefaultRadiusSq = 0.000032

// DefaultNamePriority picks the Latin-script local name before English and the plain name
var DefaultNamePriority = []string{"name:sr-Latn", "name:en", "name"}

// Index is the station lookup the resolver scans
type Index interface {
	Nearby(lat, lon, radiusSq float64) []stations.Record
	ByRef(code string) []stations.Record
}

// Stop is a timetable stop mapped onto a canonical location.
// Matched is false when the raw timetable data was used as a fallback.
type Stop struct {
	Name    string
	Lat     float64
	Lon     float64
	Matched bool
}

// Options tunes the resolver
type Options struct {
	RadiusSq       float64
	NamePriority   []string
	StopQualifiers []string

	// OnMiss is called once per unresolved coordinate pair
	OnMiss func(stop timetable.Stop)
	// OnMatch is called once per resolved coordinate pair
	OnMatch func(stop timetable.Stop, rec stations.Record)
}

// Resolver maps timetable stops onto station records
type Resolver struct {
	index Index
	cache *Cache
	opts  Options
}

// New creates a resolver. The cache is owned by the caller so that its
// lifetime (usually one run) is explicit.
func New(index Index, cache *Cache, opts Options) *Resolver {
	if opts.RadiusSq <= 0 {
		opts.RadiusSq = DefaultRadiusSq
	}
	if len(opts.NamePriority) == 0 {
		opts.NamePriority = DefaultNamePriority
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{index: index, cache: cache, opts: opts}
}

// Resolve returns the best matching station for stop, or the stop's own name
// and coordinates when nothing matches. It never fails.
func (r *Resolver) Resolve(stop timetable.Stop) Stop {
	if cached, ok := r.cache.Get(stop.Lat, stop.Lon); ok {
		return cached
	}

	var result Stop
	if rec, ok := r.best(stop); ok {
		name := rec.DisplayName(r.opts.NamePriority)
		if name == "" {
			name = stop.Name
		}
		result = Stop{Name: name, Lat: rec.Lat, Lon: rec.Lon, Matched: true}
		if r.opts.OnMatch != nil {
			r.opts.OnMatch(stop, rec)
		}
	} else {
		log.Printf("Resolver: unresolved stop %q near %f, %f, using timetable data", stop.Name, stop.Lat, stop.Lon)
		result = Stop{Name: stop.Name, Lat: stop.Lat, Lon: stop.Lon}
		if r.opts.OnMiss != nil {
			r.opts.OnMiss(stop)
		}
	}

	r.cache.Put(stop.Lat, stop.Lon, result)
	return result
}

// best ranks candidates: exact reference code, then an active station or
// halt, then the first candidate in scan order.
func (r *Resolver) best(stop timetable.Stop) (stations.Record, bool) {
	refMatches, nearby := r.candidates(stop)
	if len(refMatches) > 0 {
		return refMatches[0], true
	}
	for _, rec := range nearby {
		if rec.IsActiveStation() {
			return rec, true
		}
	}
	if len(nearby) > 0 {
		return nearby[0], true
	}
	return stations.Record{}, false
}

// candidates gathers records with the stop's reference code and records
// within the search radius whose names plausibly match. Both lists keep
// index order.
func (r *Resolver) candidates(stop timetable.Stop) (refMatches, nearby []stations.Record) {
	seen := make(map[string]bool)

	if stop.RefCode != "" {
		for _, rec := range r.index.ByRef(stop.RefCode) {
			seen[recordKey(rec)] = true
			refMatches = append(refMatches, rec)
		}
	}

	want := NormalizeName(stop.Name, r.opts.StopQualifiers)
	for _, rec := range r.index.Nearby(stop.Lat, stop.Lon, r.opts.RadiusSq) {
		key := recordKey(rec)
		if seen[key] || !r.nameMatches(want, rec) {
			continue
		}
		seen[key] = true
		nearby = append(nearby, rec)
	}

	return refMatches, nearby
}

// nameMatches checks the normalized stop name against every name-like tag of rec
func (r *Resolver) nameMatches(want string, rec stations.Record) bool {
	for _, variant := range rec.NameVariants() {
		if NamesMatch(want, NormalizeName(variant, r.opts.StopQualifiers)) {
			return true
		}
	}
	return false
}

func recordKey(rec stations.Record) string {
	if rec.ID != "" {
		return rec.ID
	}
	return fmt.Sprintf("%f,%f", rec.Lat, rec.Lon)
}
