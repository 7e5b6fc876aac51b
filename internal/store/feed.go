package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadengine/internal/domain"
)

// ListLeadsOpts narrows the qualifying-lead query consumed by reporting
// and the paid feed.
type ListLeadsOpts struct {
	Statuses    []domain.LeadStatus
	MinScore    int
	Window      string // 24h | 7d | all
	Limit       int
	OnlyFlagged bool // possible_duplicate review queue
}

const leadColumns = `lead_id, fingerprint, title, company, location, contact, url, status, score, possible_duplicate, posted_at, first_seen_at, last_seen_at, COALESCE(raw_json, '')`

// ListLeads is the read-only feed surface. Ordering is fixed at
// (score desc, first_seen_at desc, lead_id) so repeated queries over the
// same snapshot return the same sequence.
func ListLeads(ctx context.Context, q Queryer, opts ListLeadsOpts) ([]domain.Lead, error) {
	if opts.Limit <= 0 || opts.Limit > 2000 {
		opts.Limit = 200
	}

	var where []string
	var args []any

	switch opts.Window {
	case "24h":
		where = append(where, "first_seen_at >= ?")
		args = append(args, fmtTime(time.Now().Add(-24*time.Hour)))
	case "7d", "":
		where = append(where, "first_seen_at >= ?")
		args = append(args, fmtTime(time.Now().Add(-7*24*time.Hour)))
	case "all":
	}

	if len(opts.Statuses) > 0 {
		ph := make([]string, len(opts.Statuses))
		for i, s := range opts.Statuses {
			ph[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(ph, ",")+")")
	}
	if opts.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, opts.MinScore)
	}
	if opts.OnlyFlagged {
		where = append(where, "possible_duplicate = 1")
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	query := fmt.Sprintf(`
SELECT %s FROM leads
%s
ORDER BY score DESC, first_seen_at DESC, lead_id ASC
LIMIT ?;`, leadColumns, clause)
	args = append(args, opts.Limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListUndeliveredForUser returns qualifying leads not yet delivered to a
// user, newest and best first.
func ListUndeliveredForUser(ctx context.Context, q Queryer, userID string, minScore, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`
SELECT %s FROM leads
WHERE score >= ?
  AND status NOT IN ('skipped', 'expired')
  AND lead_id NOT IN (SELECT lead_id FROM delivery_log WHERE user_id = ?)
ORDER BY score DESC, first_seen_at DESC, lead_id ASC
LIMIT ?;`, leadColumns)

	rows, err := q.QueryContext(ctx, query, minScore, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LogDelivery records one feed item handed to one user. The unique index
// on (user_id, lead_id) makes re-delivery a no-op.
func LogDelivery(ctx context.Context, q Queryer, userID, plan, leadID, detail string, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
INSERT OR IGNORE INTO delivery_log (user_id, plan, lead_id, delivered_at, detail)
VALUES (?, ?, ?, ?, ?);`, userID, plan, leadID, fmtTime(at), detail)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
