package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leadengine/internal/domain"
)

// InsertLead writes a brand-new lead plus its first source cross-reference.
// Callers run this inside a transaction owned by the deduplicator.
func InsertLead(ctx context.Context, q Queryer, lead domain.Lead, ref domain.SourceRef) error {
	var postedAt any
	if lead.PostedAt != nil {
		postedAt = fmtTime(*lead.PostedAt)
	}
	_, err := q.ExecContext(ctx, `
INSERT INTO leads (lead_id, fingerprint, title, company, location, contact, url, status, score, possible_duplicate, posted_at, first_seen_at, last_seen_at, raw_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		lead.ID, lead.Fingerprint, lead.Title, lead.Company, lead.Location, lead.Contact, lead.URL,
		string(lead.Status), lead.Score, boolInt(lead.PossibleDuplicate), postedAt,
		fmtTime(lead.FirstSeenAt), fmtTime(lead.LastSeenAt), lead.RawJSON,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return insertSourceRef(ctx, q, ref)
}

func insertSourceRef(ctx context.Context, q Queryer, ref domain.SourceRef) error {
	_, err := q.ExecContext(ctx, `
INSERT OR IGNORE INTO lead_sources (source_id, external_id, lead_id, first_seen_at, last_seen_at)
VALUES (?, ?, ?, ?, ?);`,
		ref.SourceID, ref.ExternalID, ref.LeadID, fmtTime(ref.FirstSeenAt), fmtTime(ref.LastSeenAt),
	)
	if err != nil {
		return fmt.Errorf("insert lead source: %w", err)
	}
	return nil
}

// FindRef resolves the exact (source_id, external_id) path.
func FindRef(ctx context.Context, q Queryer, sourceID, externalID string) (string, error) {
	var leadID string
	err := q.QueryRowContext(ctx,
		`SELECT lead_id FROM lead_sources WHERE source_id = ? AND external_id = ? LIMIT 1;`,
		sourceID, externalID,
	).Scan(&leadID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	return leadID, err
}

// FindFingerprint resolves the cross-source exact-fingerprint path.
func FindFingerprint(ctx context.Context, q Queryer, fingerprint string) (string, error) {
	var leadID string
	err := q.QueryRowContext(ctx,
		`SELECT lead_id FROM leads WHERE fingerprint = ? LIMIT 1;`, fingerprint,
	).Scan(&leadID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	return leadID, err
}

// TouchSighting refreshes last_seen_at on both the lead and the source
// cross-reference (inserting the reference when the sighting came from a
// new source), and backfills fields an earlier sighting left empty.
// Status is never touched here.
func TouchSighting(ctx context.Context, q Queryer, leadID string, ref domain.SourceRef, cand domain.Lead) error {
	if err := insertSourceRef(ctx, q, domain.SourceRef{
		LeadID: leadID, SourceID: ref.SourceID, ExternalID: ref.ExternalID,
		FirstSeenAt: ref.FirstSeenAt, LastSeenAt: ref.LastSeenAt,
	}); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `
UPDATE lead_sources SET last_seen_at = ?
WHERE source_id = ? AND external_id = ?;`,
		fmtTime(ref.LastSeenAt), ref.SourceID, ref.ExternalID,
	); err != nil {
		return fmt.Errorf("touch lead source: %w", err)
	}

	var postedAt any
	if cand.PostedAt != nil {
		postedAt = fmtTime(*cand.PostedAt)
	}
	_, err := q.ExecContext(ctx, `
UPDATE leads SET
  last_seen_at = ?,
  contact  = CASE WHEN contact  = '' THEN ? ELSE contact  END,
  location = CASE WHEN location = '' THEN ? ELSE location END,
  company  = CASE WHEN company  = '' THEN ? ELSE company  END,
  posted_at = COALESCE(posted_at, ?),
  raw_json  = COALESCE(raw_json, ?)
WHERE lead_id = ?;`,
		fmtTime(ref.LastSeenAt), cand.Contact, cand.Location, cand.Company, postedAt, cand.RawJSON, leadID,
	)
	if err != nil {
		return fmt.Errorf("touch lead: %w", err)
	}
	return nil
}

// RecentLeads returns the newest n leads (id, title, company only) for the
// fuzzy comparison window.
func RecentLeads(ctx context.Context, q Queryer, n int) ([]domain.Lead, error) {
	if n <= 0 {
		n = 500
	}
	rows, err := q.QueryContext(ctx, `
SELECT lead_id, title, company FROM leads
ORDER BY first_seen_at DESC, lead_id DESC
LIMIT ?;`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		var l domain.Lead
		if err := rows.Scan(&l.ID, &l.Title, &l.Company); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DueLeads picks leads awaiting outreach in a fixed order (oldest
// sighting first, lead_id as tiebreak) so two runs over the same store
// pick the same work.
func DueLeads(ctx context.Context, q Queryer, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.QueryContext(ctx, `
SELECT lead_id, fingerprint, title, company, location, contact, url, status, score, possible_duplicate, posted_at, first_seen_at, last_seen_at, COALESCE(raw_json, '')
FROM leads
WHERE status IN ('new', 'queued') AND contact != ''
ORDER BY first_seen_at ASC, lead_id ASC
LIMIT ?;`, limit)
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

func FlagPossibleDuplicate(ctx context.Context, q Queryer, leadID string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE leads SET possible_duplicate = 1 WHERE lead_id = ?;`, leadID)
	return err
}

func GetLead(ctx context.Context, q Queryer, leadID string) (domain.Lead, error) {
	row := q.QueryRowContext(ctx, `
SELECT lead_id, fingerprint, title, company, location, contact, url, status, score, possible_duplicate, posted_at, first_seen_at, last_seen_at, COALESCE(raw_json, '')
FROM leads WHERE lead_id = ? LIMIT 1;`, leadID)
	return scanLead(row)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanLead(row rowScanner) (domain.Lead, error) {
	var l domain.Lead
	var status string
	var possibleDup int
	var postedAt sql.NullString
	var firstSeen, lastSeen string
	err := row.Scan(&l.ID, &l.Fingerprint, &l.Title, &l.Company, &l.Location, &l.Contact, &l.URL,
		&status, &l.Score, &possibleDup, &postedAt, &firstSeen, &lastSeen, &l.RawJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return l, domain.ErrNotFound
	}
	if err != nil {
		return l, err
	}
	l.Status = domain.LeadStatus(status)
	l.PossibleDuplicate = possibleDup != 0
	if postedAt.Valid && postedAt.String != "" {
		t := parseTime(postedAt.String)
		l.PostedAt = &t
	}
	l.FirstSeenAt = parseTime(firstSeen)
	l.LastSeenAt = parseTime(lastSeen)
	return l, nil
}

// AdvanceStatus moves a lead forward along the status lattice. A transition
// that would regress is dropped silently; a concurrent writer losing the
// optimistic check is also a no-op.
func AdvanceStatus(ctx context.Context, q Queryer, leadID string, to domain.LeadStatus) error {
	cur, err := GetLead(ctx, q, leadID)
	if err != nil {
		return err
	}
	if !domain.CanAdvance(cur.Status, to) {
		return nil
	}
	_, err = q.ExecContext(ctx,
		`UPDATE leads SET status = ? WHERE lead_id = ? AND status = ?;`,
		string(to), leadID, string(cur.Status))
	return err
}

// OverrideStatus is the explicit manual-review escape hatch: it may move
// status in any direction and always leaves an audit event behind.
func (d *DB) OverrideStatus(ctx context.Context, leadID string, to domain.LeadStatus, reason string) error {
	return d.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := GetLead(ctx, tx, leadID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE leads SET status = ? WHERE lead_id = ?;`, string(to), leadID); err != nil {
			return err
		}
		return RecordEvent(ctx, tx, domain.ContactEvent{
			LeadID:      leadID,
			Channel:     domain.ChannelManual,
			Outcome:     domain.OutcomeSent,
			AttemptedAt: time.Now().UTC(),
			Detail:      fmt.Sprintf("override status=%s reason=%s", to, reason),
		})
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
