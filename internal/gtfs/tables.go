// Package gtfs models the GTFS tables the feed builder writes and exports.
package gtfs

// Table describes one GTFS table: its store name, its file name inside the
// feed archive and its column set in canonical order.
type Table struct {
	Name    string
	File    string
	Columns []string
	Key     []string
}

var (
	Agencies = Table{
		Name: "agencies",
		File: "agency.txt",
		Columns: []string{
			"agency_id", "agency_name", "agency_url", "agency_timezone",
			"agency_phone", "agency_fare_url", "agency_email",
		},
		Key: []string{"agency_id"},
	}

	Routes = Table{
		Name: "routes",
		File: "routes.txt",
		Columns: []string{
			"route_id", "agency_id", "route_short_name", "route_long_name", "route_desc",
			"route_type", "route_url", "route_color", "route_text_color", "route_sort_order",
		},
		Key: []string{"route_id"},
	}

	Stops = Table{
		Name: "stops",
		File: "stops.txt",
		Columns: []string{
			"stop_id", "stop_code", "stop_name", "tts_stop_name", "stop_desc",
			"stop_lat", "stop_lon", "zone_id", "stop_url", "location_type",
			"parent_station", "stop_timezone", "wheelchair_boarding", "level_id", "platform_code",
		},
		Key: []string{"stop_id"},
	}

	StopTimes = Table{
		Name: "stop_times",
		File: "stop_times.txt",
		Columns: []string{
			"trip_id", "arrival_time", "departure_time", "stop_id", "location_group_id",
			"location_id", "stop_sequence", "stop_headsign", "pickup_type", "drop_off_type",
			"timepoint",
		},
		Key: []string{"trip_id", "stop_sequence"},
	}

	Trips = Table{
		Name: "trips",
		File: "trips.txt",
		Columns: []string{
			"route_id", "service_id", "trip_id", "trip_headsign", "trip_short_name",
			"direction_id", "block_id", "shape_id", "wheelchair_accessible", "bikes_allowed",
		},
		Key: []string{"trip_id"},
	}

	CalendarDates = Table{
		Name:    "calendar_dates",
		File:    "calendar_dates.txt",
		Columns: []string{"service_id", "date", "exception_type"},
		Key:     []string{"service_id", "date"},
	}

	FeedInfos = Table{
		Name:    "feed_info",
		File:    "feed_info.txt",
		Columns: []string{"feed_publisher_name", "feed_publisher_url", "feed_lang", "feed_contact_email"},
		Key:     []string{"feed_publisher_name"},
	}
)

// Tables lists every table in export order
var Tables = []Table{Agencies, Routes, Stops, StopTimes, Trips, CalendarDates, FeedInfos}

// TableByName returns the table with the given store name
func TableByName(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
