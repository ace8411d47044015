package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpcg-gtfs/poller/internal/gtfs"
	"github.com/zpcg-gtfs/poller/internal/identity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Connect(filepath.Join(t.TempDir(), "gtfs.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return db
}

func tripBatch(backendID string, date, exception int) *gtfs.Batch {
	tripID := identity.TripKey(backendID)
	serviceID := identity.ServiceKey(backendID)
	return &gtfs.Batch{
		Agencies: []gtfs.Agency{{ID: "zpcg", Name: "ZPCG", URL: "https://zpcg.me", Timezone: "Europe/Podgorica"}},
		Routes: []gtfs.Route{{
			ID: "IC 1137", AgencyID: "zpcg", LongName: "Bar - Podgorica", Type: 102,
			Color: "D82234", TextColor: "F6F6F6",
		}},
		Stops: []gtfs.Stop{
			{ID: "7900120", Name: "Bar", Lat: 42.097, Lon: 19.0956, Timezone: "Europe/Podgorica"},
			{ID: "7900100", Name: "Podgorica", Lat: 42.441, Lon: 19.2627, Timezone: "Europe/Podgorica"},
		},
		Trips: []gtfs.Trip{{RouteID: "IC 1137", ServiceID: serviceID, ID: tripID, ShortName: "1137"}},
		StopTimes: []gtfs.StopTime{
			{TripID: tripID, ArrivalTime: "06:00:00", DepartureTime: "06:00:00", StopID: "7900120", StopSequence: 1, Timepoint: 1},
			{TripID: tripID, ArrivalTime: "06:55:00", DepartureTime: "06:55:00", StopID: "7900100", StopSequence: 2, Timepoint: 1},
		},
		CalendarDates: []gtfs.CalendarDate{{ServiceID: serviceID, Date: date, ExceptionType: exception}},
		Keys:          []gtfs.TripKey{{TripID: tripID, BackendID: backendID}},
	}
}

func TestWriteBatchIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		stats, err := db.WriteBatch(ctx, tripBatch("trip-1", 20240601, 1))
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Trips)
	}

	counts, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["agencies"])
	assert.Equal(t, 1, counts["routes"])
	assert.Equal(t, 2, counts["stops"])
	assert.Equal(t, 1, counts["trips"])
	assert.Equal(t, 2, counts["stop_times"])
	assert.Equal(t, 1, counts["calendar_dates"])
}

func TestCalendarDatesAccumulate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.WriteBatch(ctx, tripBatch("trip-1", 20240601, gtfs.ServiceRemoved))
	require.NoError(t, err)
	_, err = db.WriteBatch(ctx, tripBatch("trip-1", 20240602, gtfs.ServiceAdded))
	require.NoError(t, err)

	feed, err := db.ReadFeed(ctx)
	require.NoError(t, err)

	serviceID := identity.ServiceKey("trip-1")
	assert.Equal(t, [][]string{
		{serviceID, "20240601", "0"},
		{serviceID, "20240602", "1"},
	}, feed.Rows(gtfs.CalendarDates))

	cancellations, err := db.Cancellations(ctx, 20240601)
	require.NoError(t, err)
	require.Len(t, cancellations, 1)
	assert.Equal(t, identity.TripKey("trip-1"), cancellations[0].TripID)
	assert.Equal(t, 20240601, cancellations[0].Date)

	later, err := db.Cancellations(ctx, 20240602)
	require.NoError(t, err)
	assert.Empty(t, later)
}

func TestWriteBatchSkipsCollidingTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.WriteBatch(ctx, tripBatch("trip-1", 20240601, 1))
	require.NoError(t, err)

	// Same hashed ids, different backend trip
	colliding := tripBatch("trip-1", 20240603, 1)
	colliding.Keys[0].BackendID = "trip-9"
	colliding.Trips[0].ShortName = "9999"

	stats, err := db.WriteBatch(ctx, colliding)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedTrips)
	assert.Equal(t, 0, stats.Trips)

	feed, err := db.ReadFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed.Rows(gtfs.Trips), 1)
	assert.Equal(t, "1137", feed.Rows(gtfs.Trips)[0][4])
	assert.Len(t, feed.Rows(gtfs.CalendarDates), 1)
}

func TestReadFeedFormatsNulls(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.WriteBatch(ctx, tripBatch("trip-1", 20240601, 1))
	require.NoError(t, err)

	feed, err := db.ReadFeed(ctx)
	require.NoError(t, err)

	agency := feed.Rows(gtfs.Agencies)[0]
	assert.Equal(t, []string{"zpcg", "ZPCG", "https://zpcg.me", "Europe/Podgorica", "", "", ""}, agency)

	stop := feed.Rows(gtfs.Stops)[1]
	assert.Equal(t, "7900120", stop[0])
	assert.Equal(t, "42.097", stop[5])
	assert.Equal(t, "0", stop[9])
	assert.Len(t, stop, len(gtfs.Stops.Columns))
}

func TestRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	started := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	runID, err := db.StartRun(ctx, "Podgorica", started)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	err = db.FinishRun(ctx, runID, started.Add(time.Minute), RunOutcome{
		StartWatermark: started,
		EndWatermark:   started.Add(6 * time.Hour),
		Batches:        3,
		Trips:          42,
		StopReason:     "exhausted",
		Err:            errors.New("upstream gone"),
	})
	require.NoError(t, err)

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	r := runs[0]
	assert.Equal(t, runID, r.ID)
	assert.Equal(t, "Podgorica", r.Station)
	assert.Equal(t, 42, r.Trips)
	assert.Equal(t, "exhausted", r.StopReason)
	assert.Equal(t, "upstream gone", r.Error)
	require.NotNil(t, r.EndWatermark)
	assert.True(t, r.EndWatermark.Equal(started.Add(6*time.Hour)))
}

func TestUnresolvedStops(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.RecordUnresolved(ctx, "7900999", "Virpazar", 42.246, 19.093, now))
	require.NoError(t, db.RecordUnresolved(ctx, "7900999", "Virpazar", 42.246, 19.093, now))
	require.NoError(t, db.RecordUnresolved(ctx, "7900888", "Sutomore", 42.14, 19.04, now))

	stops, err := db.ListUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, stops, 2)
	assert.Equal(t, "Virpazar", stops[0].Name)
	assert.Equal(t, 2, stops[0].SeenCount)
}

func TestCleanup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.StartRun(ctx, "Podgorica", time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	_, err = db.StartRun(ctx, "Bar", time.Now())
	require.NoError(t, err)

	require.NoError(t, db.Cleanup(ctx, 24*time.Hour))

	runs, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Bar", runs[0].Station)
}
