package publish

import (
	"fmt"

	"github.com/geops/gtfsparser"
)

// Summary counts the entities of a published feed
type Summary struct {
	Agencies int `json:"agencies"`
	Stops    int `json:"stops"`
	Routes   int `json:"routes"`
	Trips    int `json:"trips"`
	Services int `json:"services"`
}

// Summarize parses the archive at path with a full GTFS parser
func Summarize(path string) (Summary, error) {
	feed := gtfsparser.NewFeed()
	if err := feed.Parse(path); err != nil {
		return Summary{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return Summary{
		Agencies: len(feed.Agencies),
		Stops:    len(feed.Stops),
		Routes:   len(feed.Routes),
		Trips:    len(feed.Trips),
		Services: len(feed.Services),
	}, nil
}
