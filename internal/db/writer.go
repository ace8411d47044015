package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/zpcg-gtfs/poller/internal/gtfs"
)

// WriteStats summarizes one committed batch
type WriteStats struct {
	Rows         int
	Trips        int
	SkippedTrips int
}

// WriteBatch upserts every row of b in a single transaction. Trips whose
// hashed id is already bound to a different backend trip id are skipped
// together with their stop times and calendar dates.
func (db *DB) WriteBatch(ctx context.Context, b *gtfs.Batch) (WriteStats, error) {
	db.LockWrite()
	defer db.UnlockWrite()

	var stats WriteStats

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	colliding, err := claimTripKeys(ctx, tx, b.Keys)
	if err != nil {
		return stats, err
	}
	skippedServices := make(map[string]bool)
	for _, t := range b.Trips {
		if colliding[t.ID] {
			skippedServices[t.ServiceID] = true
		}
	}
	stats.SkippedTrips = len(colliding)

	stmts := make(map[string]*sql.Stmt, len(gtfs.Tables))
	for _, table := range gtfs.Tables {
		stmt, err := tx.PrepareContext(ctx, upsertSQL(table))
		if err != nil {
			return stats, fmt.Errorf("failed to prepare %s upsert: %w", table.Name, err)
		}
		defer stmt.Close()
		stmts[table.Name] = stmt
	}

	for _, row := range b.Rows() {
		switch r := row.(type) {
		case gtfs.Trip:
			if colliding[r.ID] {
				continue
			}
			stats.Trips++
		case gtfs.StopTime:
			if colliding[r.TripID] {
				continue
			}
		case gtfs.CalendarDate:
			if skippedServices[r.ServiceID] {
				continue
			}
		}

		table := row.Table()
		if _, err := stmts[table.Name].ExecContext(ctx, row.Values()...); err != nil {
			return stats, fmt.Errorf("failed to upsert %s: %w", table.Name, err)
		}
		stats.Rows++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit batch: %w", err)
	}

	return stats, nil
}

// claimTripKeys records the backend id of each trip key and returns the
// keys that already belong to another backend id.
func claimTripKeys(ctx context.Context, tx *sql.Tx, keys []gtfs.TripKey) (map[string]bool, error) {
	colliding := make(map[string]bool)
	if len(keys) == 0 {
		return colliding, nil
	}

	lookup, err := tx.PrepareContext(ctx, "SELECT backend_id FROM trip_keys WHERE trip_id = ?")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare trip key lookup: %w", err)
	}
	defer lookup.Close()

	insert, err := tx.PrepareContext(ctx, "INSERT INTO trip_keys (trip_id, backend_id) VALUES (?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare trip key insert: %w", err)
	}
	defer insert.Close()

	for _, k := range keys {
		var existing string
		err := lookup.QueryRowContext(ctx, k.TripID).Scan(&existing)
		switch {
		case err == sql.ErrNoRows:
			if _, err := insert.ExecContext(ctx, k.TripID, k.BackendID); err != nil {
				return nil, fmt.Errorf("failed to record trip key: %w", err)
			}
		case err != nil:
			return nil, fmt.Errorf("failed to look up trip key: %w", err)
		case existing != k.BackendID:
			log.Printf("Warning: trip id collision, %q and %q share %s; skipping %q",
				existing, k.BackendID, k.TripID, k.BackendID)
			colliding[k.TripID] = true
		}
	}

	return colliding, nil
}

// upsertSQL builds INSERT ... ON CONFLICT DO UPDATE for every column of table
func upsertSQL(table gtfs.Table) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(table.Columns)), ", ")

	keys := make(map[string]bool, len(table.Key))
	for _, k := range table.Key {
		keys[k] = true
	}
	var updates []string
	for _, c := range table.Columns {
		if !keys[c] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table.Name,
		strings.Join(table.Columns, ", "),
		placeholders,
		strings.Join(table.Key, ", "),
		strings.Join(updates, ", "),
	)
}
