package stations

import (
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Index is an immutable collection of station records sorted by longitude,
// then latitude. The sort order doubles as a coarse spatial index.
type Index struct {
	records []Record
	byRef   map[string][]int
}

// Load reads a GeoJSON FeatureCollection of station points
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stations dataset: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stations dataset: %w", err)
	}

	records := make([]Record, 0, len(fc.Features))
	skipped := 0
	for _, f := range fc.Features {
		point, ok := f.Geometry.(orb.Point)
		if !ok || len(f.Properties) == 0 {
			skipped++
			continue
		}

		records = append(records, Record{
			ID:   featureID(f),
			Lat:  point.Lat(),
			Lon:  point.Lon(),
			Tags: stringTags(f.Properties),
		})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("stations dataset %s contains no point features", path)
	}

	idx := NewIndex(records)
	log.Printf("Stations: loaded %d records from %s (%d non-point features skipped)", idx.Len(), path, skipped)
	return idx, nil
}

// NewIndex builds an index over records. The slice is copied.
func NewIndex(records []Record) *Index {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Lon != sorted[j].Lon {
			return sorted[i].Lon < sorted[j].Lon
		}
		return sorted[i].Lat < sorted[j].Lat
	})

	byRef := make(map[string][]int)
	for i, r := range sorted {
		if ref := r.Ref(); ref != "" {
			byRef[ref] = append(byRef[ref], i)
		}
	}

	return &Index{records: sorted, byRef: byRef}
}

// Len returns the number of records
func (idx *Index) Len() int {
	return len(idx.records)
}

// Nearby returns records whose squared coordinate distance (in degrees) to
// (lat, lon) is below radiusSq, in index order.
func (idx *Index) Nearby(lat, lon, radiusSq float64) []Record {
	r := math.Sqrt(radiusSq)
	start := sort.Search(len(idx.records), func(i int) bool {
		return idx.records[i].Lon >= lon-r
	})

	var out []Record
	for i := start; i < len(idx.records) && idx.records[i].Lon <= lon+r; i++ {
		rec := idx.records[i]
		if SquaredDistance(rec.Lat, rec.Lon, lat, lon) < radiusSq {
			out = append(out, rec)
		}
	}
	return out
}

// ByRef returns records tagged with the given reference code, in index order
func (idx *Index) ByRef(code string) []Record {
	if code == "" {
		return nil
	}
	positions := idx.byRef[code]
	out := make([]Record, 0, len(positions))
	for _, i := range positions {
		out = append(out, idx.records[i])
	}
	return out
}

// SquaredDistance is the squared euclidean distance between two coordinate pairs in degrees
func SquaredDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return (lat1-lat2)*(lat1-lat2) + (lon1-lon2)*(lon1-lon2)
}

func featureID(f *geojson.Feature) string {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	if id, ok := f.Properties["@id"]; ok {
		return fmt.Sprint(id)
	}
	return ""
}

func stringTags(props geojson.Properties) map[string]string {
	tags := make(map[string]string, len(props))
	for key, value := range props {
		switch v := value.(type) {
		case string:
			tags[key] = v
		case nil:
		case map[string]interface{}, []interface{}:
			// nested metadata (e.g. overpass "@relations") is not a tag
		default:
			tags[key] = fmt.Sprint(v)
		}
	}
	return tags
}
