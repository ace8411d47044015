package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one fetch session as recorded in fetch_runs
type Run struct {
	ID             string     `json:"run_id"`
	Station        string     `json:"station"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	StartWatermark *time.Time `json:"start_watermark,omitempty"`
	EndWatermark   *time.Time `json:"end_watermark,omitempty"`
	Batches        int        `json:"batches"`
	Trips          int        `json:"trips"`
	StopReason     string     `json:"stop_reason,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// RunOutcome is what a finished session reports back
type RunOutcome struct {
	StartWatermark time.Time
	EndWatermark   time.Time
	Batches        int
	Trips          int
	StopReason     string
	Err            error
}

// StartRun creates a fetch_runs record and returns its ID
func (db *DB) StartRun(ctx context.Context, station string, startedAt time.Time) (string, error) {
	db.LockWrite()
	defer db.UnlockWrite()

	runID := uuid.New().String()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO fetch_runs (run_id, station, started_at_utc) VALUES (?, ?, ?)",
		runID, station, startedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}

	return runID, nil
}

// FinishRun stores the outcome of a fetch session
func (db *DB) FinishRun(ctx context.Context, runID string, finishedAt time.Time, out RunOutcome) error {
	db.LockWrite()
	defer db.UnlockWrite()

	var errText any
	if out.Err != nil {
		errText = out.Err.Error()
	}

	_, err := db.conn.ExecContext(ctx, `
		UPDATE fetch_runs SET
			finished_at_utc = ?,
			start_watermark = ?,
			end_watermark = ?,
			batches = ?,
			trips = ?,
			stop_reason = ?,
			error = ?
		WHERE run_id = ?`,
		finishedAt.UTC().Format(time.RFC3339),
		epochOrNil(out.StartWatermark),
		epochOrNil(out.EndWatermark),
		out.Batches,
		out.Trips,
		out.StopReason,
		errText,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// ListRuns returns the most recent fetch runs, newest first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, station, started_at_utc, finished_at_utc, start_watermark,
			end_watermark, batches, trips, stop_reason, error
		FROM fetch_runs
		ORDER BY started_at_utc DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                  Run
			startedAt          string
			finishedAt         sql.NullString
			startMark, endMark sql.NullInt64
			reason, errText    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Station, &startedAt, &finishedAt, &startMark,
			&endMark, &r.Batches, &r.Trips, &reason, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt.Valid {
			if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
				r.FinishedAt = &t
			}
		}
		r.StartWatermark = epochPtr(startMark)
		r.EndWatermark = epochPtr(endMark)
		r.StopReason = reason.String
		r.Error = errText.String
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func epochOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func epochPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
