package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/zpcg-gtfs/poller/internal/gtfs"
)

// ReadFeed reads every GTFS table as text fields in column order. NULL
// becomes the empty string.
func (db *DB) ReadFeed(ctx context.Context) (*gtfs.Feed, error) {
	feed := gtfs.NewFeed()

	for _, table := range gtfs.Tables {
		query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
			strings.Join(table.Columns, ", "), table.Name, strings.Join(table.Key, ", "))

		rows, err := db.conn.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", table.Name, err)
		}

		values := make([]any, len(table.Columns))
		ptrs := make([]any, len(table.Columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		for rows.Next() {
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s: %w", table.Name, err)
			}
			row := make([]string, len(values))
			for i, v := range values {
				row[i] = formatValue(v)
			}
			feed.Add(table, row)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", table.Name, err)
		}
	}

	return feed, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}

// Cancellation is a trip removed from service on one date
type Cancellation struct {
	TripID    string
	RouteID   string
	ServiceID string
	Date      int
}

// Cancellations returns trips with a removal exception on or after fromDate (YYYYMMDD)
func (db *DB) Cancellations(ctx context.Context, fromDate int) ([]Cancellation, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.trip_id, t.route_id, t.service_id, c.date
		FROM calendar_dates c
		JOIN trips t ON t.service_id = c.service_id
		WHERE c.exception_type = 0 AND c.date >= ?
		ORDER BY c.date, t.trip_id`, fromDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query cancellations: %w", err)
	}
	defer rows.Close()

	var out []Cancellation
	for rows.Next() {
		var c Cancellation
		if err := rows.Scan(&c.TripID, &c.RouteID, &c.ServiceID, &c.Date); err != nil {
			return nil, fmt.Errorf("failed to scan cancellation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Counts returns the row count of every GTFS table
func (db *DB) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(gtfs.Tables))
	for _, table := range gtfs.Tables {
		var n int
		if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table.Name).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table.Name, err)
		}
		counts[table.Name] = n
	}
	return counts, nil
}
