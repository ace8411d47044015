package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Cleanup deletes fetch runs and unresolved stops not seen within retention.
// GTFS rows are never pruned here; expiring services is left to gtfsclean.
func (db *DB) Cleanup(ctx context.Context, retention time.Duration) error {
	db.LockWrite()
	defer db.UnlockWrite()

	hours := int(retention.Hours())
	if hours < 1 {
		hours = 1
	}

	queries := []struct {
		name  string
		query string
	}{
		{
			name:  "fetch_runs",
			query: fmt.Sprintf("DELETE FROM fetch_runs WHERE datetime(started_at_utc) < datetime('now', '-%d hours')", hours),
		},
		{
			name:  "unresolved_stops",
			query: fmt.Sprintf("DELETE FROM unresolved_stops WHERE datetime(last_seen_utc) < datetime('now', '-%d hours')", hours),
		},
	}

	totalDeleted := 0
	for _, q := range queries {
		result, err := db.conn.ExecContext(ctx, q.query)
		if err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", q.name, err)
		}
		rows, _ := result.RowsAffected()
		totalDeleted += int(rows)
	}

	if totalDeleted > 0 {
		log.Printf("Cleanup: deleted %d records older than %d hours", totalDeleted, hours)
	}

	return nil
}
