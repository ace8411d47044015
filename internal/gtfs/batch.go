package gtfs

// TripKey links a hashed trip id to the backend trip id it was derived from
type TripKey struct {
	TripID    string
	BackendID string
}

// Batch holds the rows produced from one or more trips, written together
type Batch struct {
	Agencies      []Agency
	Routes        []Route
	Stops         []Stop
	StopTimes     []StopTime
	Trips         []Trip
	CalendarDates []CalendarDate
	FeedInfos     []FeedInfo
	Keys          []TripKey
}

// Append adds all rows of other to b
func (b *Batch) Append(other *Batch) {
	if other == nil {
		return
	}
	b.Agencies = append(b.Agencies, other.Agencies...)
	b.Routes = append(b.Routes, other.Routes...)
	b.Stops = append(b.Stops, other.Stops...)
	b.StopTimes = append(b.StopTimes, other.StopTimes...)
	b.Trips = append(b.Trips, other.Trips...)
	b.CalendarDates = append(b.CalendarDates, other.CalendarDates...)
	b.FeedInfos = append(b.FeedInfos, other.FeedInfos...)
	b.Keys = append(b.Keys, other.Keys...)
}

// Rows returns every row in table dependency order
func (b *Batch) Rows() []Row {
	rows := make([]Row, 0, b.Len())
	for _, r := range b.Agencies {
		rows = append(rows, r)
	}
	for _, r := range b.FeedInfos {
		rows = append(rows, r)
	}
	for _, r := range b.Routes {
		rows = append(rows, r)
	}
	for _, r := range b.Stops {
		rows = append(rows, r)
	}
	for _, r := range b.Trips {
		rows = append(rows, r)
	}
	for _, r := range b.StopTimes {
		rows = append(rows, r)
	}
	for _, r := range b.CalendarDates {
		rows = append(rows, r)
	}
	return rows
}

// Len returns the total number of rows
func (b *Batch) Len() int {
	return len(b.Agencies) + len(b.Routes) + len(b.Stops) + len(b.StopTimes) +
		len(b.Trips) + len(b.CalendarDates) + len(b.FeedInfos)
}

// Feed is the exported content of every table as text fields in column order
type Feed struct {
	rows map[string][][]string
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{rows: make(map[string][][]string)}
}

// Add appends a row to table. The row must have one field per column.
func (f *Feed) Add(table Table, row []string) {
	f.rows[table.Name] = append(f.rows[table.Name], row)
}

// Rows returns the rows of table
func (f *Feed) Rows(table Table) [][]string {
	return f.rows[table.Name]
}

// Count returns the number of rows of table
func (f *Feed) Count(table Table) int {
	return len(f.rows[table.Name])
}

// Counts returns the row count per table name
func (f *Feed) Counts() map[string]int {
	counts := make(map[string]int, len(Tables))
	for _, t := range Tables {
		counts[t.Name] = f.Count(t)
	}
	return counts
}
