package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// IsBlocked reports whether a contact is on the blocklist (bounced or
// opted out). Empty contacts are never blocked.
func IsBlocked(ctx context.Context, q Queryer, contact string) (bool, error) {
	c := strings.ToLower(strings.TrimSpace(contact))
	if c == "" {
		return false, nil
	}
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM blocklist WHERE contact = ? LIMIT 1;`, c).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

func AddToBlocklist(ctx context.Context, q Queryer, contact, reason string, at time.Time) error {
	c := strings.ToLower(strings.TrimSpace(contact))
	if c == "" {
		return nil
	}
	_, err := q.ExecContext(ctx, `
INSERT OR IGNORE INTO blocklist (contact, reason, created_at)
VALUES (?, ?, ?);`, c, reason, fmtTime(at))
	return err
}
