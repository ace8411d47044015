package hafasrest

import "time"

// apiLocation is a place returned by /locations
type apiLocation struct {
	Type     string       `json:"type"`
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Location *apiPosition `json:"location"`
}

type apiPosition struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type apiLine struct {
	Name    string `json:"name"`
	Mode    string `json:"mode"`
	Product string `json:"product"`
}

// apiBoardEntry is one departure or arrival board entry
type apiBoardEntry struct {
	TripID      string     `json:"tripId"`
	When        *time.Time `json:"when"`
	PlannedWhen *time.Time `json:"plannedWhen"`
	Cancelled   bool       `json:"cancelled"`
	Line        *apiLine   `json:"line"`
}

type apiDepartures struct {
	Departures []apiBoardEntry `json:"departures"`
}

type apiArrivals struct {
	Arrivals []apiBoardEntry `json:"arrivals"`
}

type apiStopover struct {
	Stop             apiLocation `json:"stop"`
	Arrival          *time.Time  `json:"arrival"`
	PlannedArrival   *time.Time  `json:"plannedArrival"`
	Departure        *time.Time  `json:"departure"`
	PlannedDeparture *time.Time  `json:"plannedDeparture"`
	Cancelled        bool        `json:"cancelled"`
}

type apiTrip struct {
	ID               string        `json:"id"`
	Line             *apiLine      `json:"line"`
	Cancelled        bool          `json:"cancelled"`
	Departure        *time.Time    `json:"departure"`
	PlannedDeparture *time.Time    `json:"plannedDeparture"`
	Stopovers        []apiStopover `json:"stopovers"`
}

type apiTripResponse struct {
	Trip apiTrip `json:"trip"`
}
