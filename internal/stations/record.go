package stations

import (
	"sort"
	"strings"
)

// refTags are the OSM tags that may carry an external station number, in lookup order
var refTags = []string{"uic_ref", "ref:ibnr", "railway:ref", "ref"}

// extraNameTags are name-like tags besides "name" and "name:*"
var extraNameTags = map[string]bool{
	"official_name": true,
	"short_name":    true,
	"old_name":      true,
	"loc_name":      true,
	"int_name":      true,
}

// Record is a station point from the geographic dataset
type Record struct {
	ID   string
	Lat  float64
	Lon  float64
	Tags map[string]string
}

// Ref returns the external reference code of the station, or "" if untagged
func (r Record) Ref() string {
	for _, key := range refTags {
		if v := strings.TrimSpace(r.Tags[key]); v != "" {
			return v
		}
	}
	return ""
}

// NameVariants returns every name-like tag value: "name" first, then the
// localized and alternate names ordered by tag key.
func (r Record) NameVariants() []string {
	var keys []string
	for key := range r.Tags {
		if isNameTag(key) && key != "name" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var names []string
	if v := r.Tags["name"]; v != "" {
		names = append(names, v)
	}
	for _, key := range keys {
		if v := r.Tags[key]; v != "" {
			names = append(names, v)
		}
	}
	return names
}

// DisplayName picks the first present tag from priority, falling back to any name variant
func (r Record) DisplayName(priority []string) string {
	for _, key := range priority {
		if v := r.Tags[key]; v != "" {
			return v
		}
	}
	if names := r.NameVariants(); len(names) > 0 {
		return names[0]
	}
	return ""
}

// IsActiveStation reports whether the record is a passenger station or halt
// that is not marked abandoned or disused.
func (r Record) IsActiveStation() bool {
	for key, value := range r.Tags {
		if isLifecyclePrefix(key) || isLifecyclePrefix(value) {
			return false
		}
	}

	switch r.Tags["railway"] {
	case "station", "halt":
		return true
	}
	return r.Tags["public_transport"] == "station"
}

func isNameTag(key string) bool {
	return key == "name" ||
		strings.HasPrefix(key, "name:") ||
		strings.HasPrefix(key, "alt_name") ||
		extraNameTags[key]
}

func isLifecyclePrefix(s string) bool {
	return strings.HasPrefix(s, "abandoned") ||
		strings.HasPrefix(s, "disused") ||
		strings.HasPrefix(s, "razed")
}
