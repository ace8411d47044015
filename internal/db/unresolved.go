package db

import (
	"context"
	"fmt"
	"time"
)

// UnresolvedStop is a timetable stop without a matching station record
type UnresolvedStop struct {
	StopID    string    `json:"stop_id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	SeenCount int       `json:"seen_count"`
}

// RecordUnresolved remembers a stop that fell back to timetable data
func (db *DB) RecordUnresolved(ctx context.Context, stopID, name string, lat, lon float64, seenAt time.Time) error {
	db.LockWrite()
	defer db.UnlockWrite()

	ts := seenAt.UTC().Format(time.RFC3339)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO unresolved_stops (stop_id, stop_name, stop_lat, stop_lon, first_seen_utc, last_seen_utc)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (stop_id, stop_lat, stop_lon) DO UPDATE SET
			stop_name = excluded.stop_name,
			last_seen_utc = excluded.last_seen_utc,
			seen_count = seen_count + 1`,
		stopID, name, lat, lon, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to record unresolved stop %s: %w", stopID, err)
	}
	return nil
}

// ListUnresolved returns unresolved stops, most frequently seen first
func (db *DB) ListUnresolved(ctx context.Context) ([]UnresolvedStop, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT stop_id, stop_name, stop_lat, stop_lon, first_seen_utc, last_seen_utc, seen_count
		FROM unresolved_stops
		ORDER BY seen_count DESC, stop_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved stops: %w", err)
	}
	defer rows.Close()

	var stops []UnresolvedStop
	for rows.Next() {
		var s UnresolvedStop
		var first, last string
		if err := rows.Scan(&s.StopID, &s.Name, &s.Lat, &s.Lon, &first, &last, &s.SeenCount); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved stop: %w", err)
		}
		s.FirstSeen, _ = time.Parse(time.RFC3339, first)
		s.LastSeen, _ = time.Parse(time.RFC3339, last)
		stops = append(stops, s)
	}

	return stops, rows.Err()
}
