package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zpcg-gtfs/poller/internal/db"
	"github.com/zpcg-gtfs/poller/internal/gtfs"
	"github.com/zpcg-gtfs/poller/internal/timetable"
)

var t0 = time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC)

type board struct {
	departures []timetable.Leg
	arrivals   []timetable.Leg
}

type fakeClient struct {
	boards     map[int64]board
	tripErr    error
	onTrip     func(id string)
	tripCalls  []string
	boardCalls []time.Time
}

func (f *fakeClient) ResolvePlace(ctx context.Context, name string) (timetable.Location, error) {
	return timetable.Location{ID: "7900100", Name: name}, nil
}

func (f *fakeClient) Departures(ctx context.Context, loc timetable.Location, from time.Time, maxCount int, products timetable.Products) ([]timetable.Leg, error) {
	f.boardCalls = append(f.boardCalls, from)
	return f.boards[from.Unix()].departures, nil
}

func (f *fakeClient) Arrivals(ctx context.Context, loc timetable.Location, from time.Time, maxCount int, products timetable.Products) ([]timetable.Leg, error) {
	return f.boards[from.Unix()].arrivals, nil
}

func (f *fakeClient) TripDetail(ctx context.Context, id string) (*timetable.Trip, error) {
	f.tripCalls = append(f.tripCalls, id)
	if f.onTrip != nil {
		f.onTrip(id)
	}
	if f.tripErr != nil {
		return nil, f.tripErr
	}
	return &timetable.Trip{ID: id, Name: "IC " + id, Mode: timetable.ModeTrain}, nil
}

type fakeAssembler struct{}

func (fakeAssembler) Static() *gtfs.Batch {
	return &gtfs.Batch{Agencies: []gtfs.Agency{{ID: "zpcg"}}}
}

func (fakeAssembler) Assemble(trip *timetable.Trip) (*gtfs.Batch, error) {
	if trip.ID == "broken" {
		return nil, fmt.Errorf("trip %s has no stopovers", trip.ID)
	}
	return &gtfs.Batch{Trips: []gtfs.Trip{{ID: trip.ID}}}, nil
}

type fakeSink struct {
	batches []*gtfs.Batch
}

func (s *fakeSink) WriteBatch(ctx context.Context, b *gtfs.Batch) (db.WriteStats, error) {
	s.batches = append(s.batches, b)
	return db.WriteStats{Rows: b.Len(), Trips: len(b.Trips)}, nil
}

type memStore struct {
	marks map[string]time.Time
	saves []time.Time
}

func (m *memStore) Load(station string) (time.Time, bool, error) {
	t, ok := m.marks[station]
	return t, ok, nil
}

func (m *memStore) Save(station string, t time.Time) error {
	if m.marks == nil {
		m.marks = make(map[string]time.Time)
	}
	m.marks[station] = t
	m.saves = append(m.saves, t)
	return nil
}

func leg(id string, offset time.Duration) timetable.Leg {
	return timetable.Leg{TripID: id, When: t0.Add(offset)}
}

func newTestLoop(client *fakeClient, sink *fakeSink, store *memStore) *Loop {
	return NewLoop(client, fakeAssembler{}, sink, store, Options{Now: func() time.Time { return t0 }})
}

func TestRunAdvancesWatermarkUntilStagnation(t *testing.T) {
	client := &fakeClient{boards: map[int64]board{
		t0.Unix(): {
			departures: []timetable.Leg{leg("a", time.Hour), leg("b", 2*time.Hour)},
			arrivals:   []timetable.Leg{leg("b", 90*time.Minute), leg("c", 3*time.Hour)},
		},
		t0.Add(2 * time.Hour).Unix(): {
			departures: []timetable.Leg{leg("d", 2*time.Hour)},
		},
	}}
	sink := &fakeSink{}
	store := &memStore{}

	res, err := newTestLoop(client, sink, store).Run(context.Background(), "Podgorica")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Reason != ReasonStagnated {
		t.Errorf("expected stagnated, got %s", res.Reason)
	}
	if res.Batches != 2 || res.Trips != 4 {
		t.Errorf("expected 2 batches and 4 trips, got %d and %d", res.Batches, res.Trips)
	}
	if len(store.saves) != 1 || !store.saves[0].Equal(t0.Add(2*time.Hour)) {
		t.Errorf("expected one save at +2h, got %v", store.saves)
	}
	if !res.End.Equal(t0.Add(2 * time.Hour)) {
		t.Errorf("unexpected end watermark %s", res.End)
	}

	want := []string{"a", "b", "c", "d"}
	if fmt.Sprint(client.tripCalls) != fmt.Sprint(want) {
		t.Errorf("expected trip calls %v, got %v", want, client.tripCalls)
	}
	if len(sink.batches[0].Trips) != 3 {
		t.Errorf("expected de-duplicated first batch, got %d trips", len(sink.batches[0].Trips))
	}
	if len(sink.batches[0].Agencies) != 1 {
		t.Error("expected static rows in every batch")
	}
}

func TestRunWatermarkIsMonotone(t *testing.T) {
	client := &fakeClient{boards: map[int64]board{
		t0.Unix():                    {departures: []timetable.Leg{leg("a", time.Hour)}},
		t0.Add(time.Hour).Unix():     {departures: []timetable.Leg{leg("b", 3*time.Hour)}, arrivals: []timetable.Leg{leg("c", 2*time.Hour)}},
		t0.Add(2 * time.Hour).Unix(): {},
	}}
	store := &memStore{}

	res, err := newTestLoop(client, &fakeSink{}, store).Run(context.Background(), "Podgorica")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Reason != ReasonExhausted {
		t.Errorf("expected exhausted, got %s", res.Reason)
	}
	for i := 1; i < len(store.saves); i++ {
		if !store.saves[i].After(store.saves[i-1]) {
			t.Errorf("watermark went from %s to %s", store.saves[i-1], store.saves[i])
		}
	}
	if len(store.saves) != 2 {
		t.Errorf("expected 2 saves, got %d", len(store.saves))
	}
}

func TestRunResumesFromStoredWatermark(t *testing.T) {
	resume := t0.Add(5 * time.Hour)
	client := &fakeClient{boards: map[int64]board{}}
	store := &memStore{marks: map[string]time.Time{"Podgorica": resume}}

	res, err := newTestLoop(client, &fakeSink{}, store).Run(context.Background(), "Podgorica")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(client.boardCalls) != 1 || !client.boardCalls[0].Equal(resume) {
		t.Errorf("expected first query at %s, got %v", resume, client.boardCalls)
	}
	if res.Reason != ReasonExhausted || len(store.saves) != 0 {
		t.Errorf("expected exhausted without saves, got %s and %d", res.Reason, len(store.saves))
	}
}

func TestRunUpstreamErrorDiscardsBatch(t *testing.T) {
	client := &fakeClient{
		boards:  map[int64]board{t0.Unix(): {departures: []timetable.Leg{leg("a", time.Hour)}}},
		tripErr: fmt.Errorf("%w: status 503", timetable.ErrUpstream),
	}
	sink := &fakeSink{}
	store := &memStore{}

	res, err := newTestLoop(client, sink, store).Run(context.Background(), "Podgorica")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Reason != ReasonUpstream || res.Err == nil {
		t.Errorf("expected upstream stop with error, got %s / %v", res.Reason, res.Err)
	}
	if len(sink.batches) != 0 || len(store.saves) != 0 {
		t.Error("expected nothing committed")
	}
}

func TestRunInterruptedBetweenTrips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &fakeClient{
		boards: map[int64]board{t0.Unix(): {departures: []timetable.Leg{leg("a", time.Hour), leg("b", 2*time.Hour)}}},
		onTrip: func(string) { cancel() },
	}
	sink := &fakeSink{}
	store := &memStore{}

	res, err := newTestLoop(client, sink, store).Run(ctx, "Podgorica")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Reason != ReasonInterrupted {
		t.Errorf("expected interrupted, got %s", res.Reason)
	}
	if len(client.tripCalls) != 1 {
		t.Errorf("expected the in-flight call to finish and no further calls, got %v", client.tripCalls)
	}
	if len(sink.batches) != 0 || len(store.saves) != 0 {
		t.Error("expected nothing committed")
	}
}

func TestRunSkipsUnassemblableTrip(t *testing.T) {
	client := &fakeClient{boards: map[int64]board{
		t0.Unix(): {departures: []timetable.Leg{leg("broken", time.Hour), leg("a", 2*time.Hour)}},
	}}
	sink := &fakeSink{}

	res, err := newTestLoop(client, sink, &memStore{}).Run(context.Background(), "Podgorica")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Trips != 1 {
		t.Errorf("expected 1 trip written, got %d", res.Trips)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store := FileStore{Dir: dir}

	if _, ok, err := store.Load("Podgorica"); err != nil || ok {
		t.Fatalf("expected no watermark, got ok=%v err=%v", ok, err)
	}

	mark := time.Unix(1717228800, 0)
	if err := store.Save("Podgorica", mark); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "latest_timestamp_Podgorica.txt"))
	if err != nil {
		t.Fatalf("expected watermark file: %v", err)
	}
	if string(data) != "1717228800" {
		t.Errorf("unexpected file content %q", data)
	}

	got, ok, err := store.Load("Podgorica")
	if err != nil || !ok || !got.Equal(mark) {
		t.Errorf("Load = %s, %v, %v", got, ok, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the watermark file, got %d entries", len(entries))
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := FileStore{Dir: dir}
	os.WriteFile(store.Path("Bar"), []byte("yesterday"), 0644)

	if _, _, err := store.Load("Bar"); err == nil {
		t.Error("expected an error for a corrupt watermark")
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"Podgorica":    "Podgorica",
		"Bijelo Polje": "Bijelo_Polje",
		"../etc":       "___etc",
		"Nikšić":       "Nikšić",
	}
	for in, want := range tests {
		if got := safeName(in); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}
