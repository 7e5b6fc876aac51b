package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadengine/internal/domain"
)

// HasSent reports whether a sent event already exists for this
// (lead, channel). The orchestrator re-checks this inside the same
// transaction that records the new event.
func HasSent(ctx context.Context, q Queryer, leadID string, channel domain.Channel) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
SELECT 1 FROM contact_events
WHERE lead_id = ? AND channel = ? AND outcome = 'sent'
LIMIT 1;`, leadID, string(channel)).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// RecordEvent appends one contact event. A second sent event for the same
// (lead, channel) violates the partial unique index; that surfaces as a
// ConsistencyError so the caller can abort just this item.
func RecordEvent(ctx context.Context, q Queryer, ev domain.ContactEvent) error {
	if ev.AttemptedAt.IsZero() {
		ev.AttemptedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
INSERT INTO contact_events (lead_id, channel, outcome, attempted_at, detail)
VALUES (?, ?, ?, ?, ?);`,
		ev.LeadID, string(ev.Channel), string(ev.Outcome), fmtTime(ev.AttemptedAt), ev.Detail,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return &domain.ConsistencyError{
				Msg: fmt.Sprintf("second sent event for lead=%s channel=%s", ev.LeadID, ev.Channel),
			}
		}
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// AwaitingReview reports whether the newest event for this lead on the
// given channel (manual override events included) parked it: a blocked
// or needs_manual outcome takes the lead out of the automatic queue. An
// operator override appends a newer manual event, which clears the park
// and lets the lead re-enter.
func AwaitingReview(ctx context.Context, q Queryer, leadID string, channel domain.Channel) (bool, error) {
	var outcome string
	err := q.QueryRowContext(ctx, `
SELECT outcome FROM contact_events
WHERE lead_id = ? AND channel IN (?, 'manual')
ORDER BY attempted_at DESC, event_id DESC
LIMIT 1;`, leadID, string(channel)).Scan(&outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	o := domain.Outcome(outcome)
	return o == domain.OutcomeBlocked || o == domain.OutcomeNeedsManual, nil
}

// SentCountSince counts sent events on one channel since a cutoff; the
// orchestrator uses it for the daily outreach cap.
func SentCountSince(ctx context.Context, q Queryer, channel domain.Channel, since time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
SELECT COUNT(*) FROM contact_events
WHERE channel = ? AND outcome = 'sent' AND attempted_at >= ?;`,
		string(channel), fmtTime(since)).Scan(&n)
	return n, err
}

// EventsForLead lists a lead's contact events ordered by attempt time.
func EventsForLead(ctx context.Context, q Queryer, leadID string) ([]domain.ContactEvent, error) {
	rows, err := q.QueryContext(ctx, `
SELECT event_id, lead_id, channel, outcome, attempted_at, detail
FROM contact_events
WHERE lead_id = ?
ORDER BY attempted_at ASC, event_id ASC;`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ContactEvent
	for rows.Next() {
		var ev domain.ContactEvent
		var channel, outcome, at string
		if err := rows.Scan(&ev.ID, &ev.LeadID, &channel, &outcome, &at, &ev.Detail); err != nil {
			return nil, err
		}
		ev.Channel = domain.Channel(channel)
		ev.Outcome = domain.Outcome(outcome)
		ev.AttemptedAt = parseTime(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MarkContactBounced records a failed follow-up event on every lead whose
// contact matches; the bounce sweeper calls this when a DSN arrives.
func MarkContactBounced(ctx context.Context, q Queryer, contact, detail string) (int, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT lead_id FROM leads WHERE contact = ?;`, strings.ToLower(strings.TrimSpace(contact)))
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	marked := 0
	for _, id := range ids {
		err := RecordEvent(ctx, q, domain.ContactEvent{
			LeadID:  id,
			Channel: domain.ChannelEmail,
			Outcome: domain.OutcomeFailed,
			Detail:  detail,
		})
		if err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}
