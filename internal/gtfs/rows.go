package gtfs

// Exception types of calendar_dates.txt
const (
	ServiceAdded   = 1
	ServiceRemoved = 0
)

// Row is a typed table row. Values returns one value per column of Table,
// nil for columns the feed builder leaves empty.
type Row interface {
	Table() Table
	Values() []any
}

// Agency represents a row of agency.txt
type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
	Phone    string
	FareURL  string
	Email    string
}

func (Agency) Table() Table { return Agencies }

func (a Agency) Values() []any {
	return []any{a.ID, a.Name, a.URL, a.Timezone, nullable(a.Phone), nullable(a.FareURL), nullable(a.Email)}
}

// Route represents a row of routes.txt
type Route struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Type      int
	Color     string
	TextColor string
}

func (Route) Table() Table { return Routes }

func (r Route) Values() []any {
	return []any{
		r.ID, r.AgencyID, nullable(r.ShortName), nullable(r.LongName), nil,
		r.Type, nil, nullable(r.Color), nullable(r.TextColor), nil,
	}
}

// Stop represents a row of stops.txt
type Stop struct {
	ID           string
	Name         string
	Lat          float64
	Lon          float64
	LocationType int
	Timezone     string
}

func (Stop) Table() Table { return Stops }

func (s Stop) Values() []any {
	return []any{
		s.ID, nil, s.Name, nil, nil,
		s.Lat, s.Lon, nil, nil, s.LocationType,
		nil, nullable(s.Timezone), nil, nil, nil,
	}
}

// StopTime represents a row of stop_times.txt
type StopTime struct {
	TripID        string
	ArrivalTime   string
	DepartureTime string
	StopID        string
	StopSequence  int
	Timepoint     int
}

func (StopTime) Table() Table { return StopTimes }

func (st StopTime) Values() []any {
	return []any{
		st.TripID, nullable(st.ArrivalTime), nullable(st.DepartureTime), st.StopID, nil,
		nil, st.StopSequence, nil, nil, nil,
		st.Timepoint,
	}
}

// Trip represents a row of trips.txt
type Trip struct {
	RouteID   string
	ServiceID string
	ID        string
	ShortName string
}

func (Trip) Table() Table { return Trips }

func (t Trip) Values() []any {
	return []any{t.RouteID, t.ServiceID, t.ID, nil, nullable(t.ShortName), nil, nil, nil, nil, nil}
}

// CalendarDate represents a row of calendar_dates.txt. Date is YYYYMMDD.
type CalendarDate struct {
	ServiceID     string
	Date          int
	ExceptionType int
}

func (CalendarDate) Table() Table { return CalendarDates }

func (c CalendarDate) Values() []any {
	return []any{c.ServiceID, c.Date, c.ExceptionType}
}

// FeedInfo represents a row of feed_info.txt
type FeedInfo struct {
	PublisherName string
	PublisherURL  string
	Lang          string
	ContactEmail  string
}

func (FeedInfo) Table() Table { return FeedInfos }

func (f FeedInfo) Values() []any {
	return []any{f.PublisherName, f.PublisherURL, f.Lang, nullable(f.ContactEmail)}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
