package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Cursor returns the opaque scan cursor for a source; empty when the
// source has never been scanned. Adapters own the cursor format.
func Cursor(ctx context.Context, q Queryer, sourceID string) (string, time.Time, error) {
	var cursor, lastScan string
	err := q.QueryRowContext(ctx,
		`SELECT cursor, last_scan_at FROM sources WHERE source_id = ? LIMIT 1;`,
		sourceID).Scan(&cursor, &lastScan)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	var at time.Time
	if lastScan != "" {
		at = parseTime(lastScan)
	}
	return cursor, at, nil
}

// SetCursor persists the cursor a scan returned, so the next scan resumes
// from it.
func SetCursor(ctx context.Context, q Queryer, sourceID, cursor string, scanAt time.Time) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO sources (source_id, cursor, last_scan_at)
VALUES (?, ?, ?)
ON CONFLICT(source_id) DO UPDATE SET
  cursor = excluded.cursor,
  last_scan_at = excluded.last_scan_at;`,
		sourceID, cursor, fmtTime(scanAt))
	return err
}
