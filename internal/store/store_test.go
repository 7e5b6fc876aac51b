package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadengine/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db.Pool))
	return db
}

func seedLead(t *testing.T, db *DB, id, contact string, status domain.LeadStatus, score int, firstSeen time.Time) domain.Lead {
	t.Helper()
	lead := domain.Lead{
		ID:          id,
		Fingerprint: id,
		Title:       "Engineer " + id,
		Company:     "Acme",
		Contact:     contact,
		URL:         "https://example.com/" + id,
		Status:      status,
		Score:       score,
		FirstSeenAt: firstSeen,
		LastSeenAt:  firstSeen,
	}
	ref := domain.SourceRef{
		LeadID: id, SourceID: "src", ExternalID: id,
		FirstSeenAt: firstSeen, LastSeenAt: firstSeen,
	}
	require.NoError(t, InsertLead(context.Background(), db.Pool, lead, ref))
	return lead
}

func TestAtMostOneSentPerChannel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedLead(t, db, "l1", "a@b.c", domain.StatusNew, 1, now)

	ev := domain.ContactEvent{
		LeadID: "l1", Channel: domain.ChannelEmail,
		Outcome: domain.OutcomeSent, AttemptedAt: now,
	}
	require.NoError(t, RecordEvent(ctx, db.Pool, ev))

	err := RecordEvent(ctx, db.Pool, ev)
	var cerr *domain.ConsistencyError
	require.ErrorAs(t, err, &cerr)

	// failed outcomes are unconstrained
	ev.Outcome = domain.OutcomeFailed
	require.NoError(t, RecordEvent(ctx, db.Pool, ev))
	require.NoError(t, RecordEvent(ctx, db.Pool, ev))

	// a sent on another channel is fine
	require.NoError(t, RecordEvent(ctx, db.Pool, domain.ContactEvent{
		LeadID: "l1", Channel: domain.ChannelTelegram,
		Outcome: domain.OutcomeSent, AttemptedAt: now,
	}))

	sent, err := HasSent(ctx, db.Pool, "l1", domain.ChannelEmail)
	require.NoError(t, err)
	assert.True(t, sent)
	sent, err = HasSent(ctx, db.Pool, "l2", domain.ChannelEmail)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestAdvanceStatusNeverRegresses(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedLead(t, db, "l1", "", domain.StatusNew, 1, time.Now().UTC())

	require.NoError(t, AdvanceStatus(ctx, db.Pool, "l1", domain.StatusContacted))
	got, err := GetLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, got.Status)

	// regression is a silent no-op
	require.NoError(t, AdvanceStatus(ctx, db.Pool, "l1", domain.StatusNew))
	got, err = GetLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, got.Status)

	require.NoError(t, AdvanceStatus(ctx, db.Pool, "l1", domain.StatusReplied))
	got, _ = GetLead(ctx, db.Pool, "l1")
	assert.Equal(t, domain.StatusReplied, got.Status)

	// terminal stays terminal
	require.NoError(t, AdvanceStatus(ctx, db.Pool, "l1", domain.StatusSkipped))
	got, _ = GetLead(ctx, db.Pool, "l1")
	assert.Equal(t, domain.StatusReplied, got.Status)
}

func TestOverrideStatusAuditsAndMayRegress(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedLead(t, db, "l1", "", domain.StatusContacted, 1, time.Now().UTC())

	require.NoError(t, db.OverrideStatus(ctx, "l1", domain.StatusNew, "bad data"))
	got, err := GetLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, got.Status)

	evts, err := EventsForLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, domain.ChannelManual, evts[0].Channel)
	assert.Contains(t, evts[0].Detail, "bad data")

	// a second override must not trip the sent-uniqueness index
	require.NoError(t, db.OverrideStatus(ctx, "l1", domain.StatusSkipped, "dup"))
}

func TestAwaitingReviewClearedByOverride(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedLead(t, db, "l1", "a@b.c", domain.StatusNew, 1, time.Now().UTC())

	parked, err := AwaitingReview(ctx, db.Pool, "l1", domain.ChannelEmail)
	require.NoError(t, err)
	assert.False(t, parked, "no events yet")

	require.NoError(t, RecordEvent(ctx, db.Pool, domain.ContactEvent{
		LeadID: "l1", Channel: domain.ChannelEmail,
		Outcome: domain.OutcomeNeedsManual, AttemptedAt: time.Now().UTC(),
		Detail: "no contact on file",
	}))
	parked, err = AwaitingReview(ctx, db.Pool, "l1", domain.ChannelEmail)
	require.NoError(t, err)
	assert.True(t, parked)

	// only relevant on its own channel
	parked, err = AwaitingReview(ctx, db.Pool, "l1", domain.ChannelTelegram)
	require.NoError(t, err)
	assert.False(t, parked)

	// the override event supersedes the park
	require.NoError(t, db.OverrideStatus(ctx, "l1", domain.StatusQueued, "contact confirmed"))
	parked, err = AwaitingReview(ctx, db.Pool, "l1", domain.ChannelEmail)
	require.NoError(t, err)
	assert.False(t, parked)
}

func TestDueLeadsDeterministicOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	seedLead(t, db, "b", "x@y.z", domain.StatusNew, 1, base.Add(time.Hour))
	seedLead(t, db, "a", "x@y.z", domain.StatusNew, 1, base.Add(time.Hour))
	seedLead(t, db, "c", "x@y.z", domain.StatusQueued, 1, base)
	seedLead(t, db, "d", "", domain.StatusNew, 1, base)                      // no contact
	seedLead(t, db, "e", "x@y.z", domain.StatusContacted, 1, base)           // already worked
	seedLead(t, db, "f", "x@y.z", domain.StatusSkipped, 1, base)             // terminal

	got, err := DueLeads(ctx, db.Pool, 10)
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, l := range got {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	again, err := DueLeads(ctx, db.Pool, 10)
	require.NoError(t, err)
	require.Len(t, again, len(got))
	for i := range got {
		assert.Equal(t, got[i].ID, again[i].ID)
	}
}

func TestBlocklist(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	blocked, err := IsBlocked(ctx, db.Pool, "dead@example.com")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, AddToBlocklist(ctx, db.Pool, "Dead@Example.com", "bounce", now))
	require.NoError(t, AddToBlocklist(ctx, db.Pool, "dead@example.com", "bounce again", now))

	blocked, err = IsBlocked(ctx, db.Pool, "DEAD@example.COM")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = IsBlocked(ctx, db.Pool, "")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestCursorRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cursor, lastScan, err := Cursor(ctx, db.Pool, "src-a")
	require.NoError(t, err)
	assert.Empty(t, cursor)
	assert.True(t, lastScan.IsZero())

	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	require.NoError(t, SetCursor(ctx, db.Pool, "src-a", "etag-1", at))
	require.NoError(t, SetCursor(ctx, db.Pool, "src-a", "etag-2", at.Add(time.Hour)))

	cursor, lastScan, err = Cursor(ctx, db.Pool, "src-a")
	require.NoError(t, err)
	assert.Equal(t, "etag-2", cursor)
	assert.Equal(t, at.Add(time.Hour), lastScan)
}

func TestDeliveryLogIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedLead(t, db, "l1", "", domain.StatusNew, 5, now)
	seedLead(t, db, "l2", "", domain.StatusNew, 3, now)

	fresh, err := LogDelivery(ctx, db.Pool, "u1", "monthly", "l1", "chat 7", now)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = LogDelivery(ctx, db.Pool, "u1", "monthly", "l1", "chat 7", now)
	require.NoError(t, err)
	assert.False(t, fresh, "second delivery of the same lead is a no-op")

	leads, err := ListUndeliveredForUser(ctx, db.Pool, "u1", 0, 10)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "l2", leads[0].ID)

	// a different user still sees both
	leads, err = ListUndeliveredForUser(ctx, db.Pool, "u2", 0, 10)
	require.NoError(t, err)
	assert.Len(t, leads, 2)
}

func TestListLeadsFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedLead(t, db, "hi", "", domain.StatusNew, 9, now)
	seedLead(t, db, "lo", "", domain.StatusNew, 1, now)
	seedLead(t, db, "old", "", domain.StatusNew, 9, now.Add(-30*24*time.Hour))
	skipped := seedLead(t, db, "sk", "", domain.StatusSkipped, 9, now)
	_ = skipped

	leads, err := ListLeads(ctx, db.Pool, ListLeadsOpts{MinScore: 5, Window: "7d"})
	require.NoError(t, err)
	ids := make([]string, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
	}
	assert.ElementsMatch(t, []string{"hi", "sk"}, ids)

	leads, err = ListLeads(ctx, db.Pool, ListLeadsOpts{Window: "all", Statuses: []domain.LeadStatus{domain.StatusNew}})
	require.NoError(t, err)
	assert.Len(t, leads, 3)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		lead := domain.Lead{
			ID: "l1", Fingerprint: "l1", Title: "T", URL: "u",
			Status: domain.StatusNew, FirstSeenAt: now, LastSeenAt: now,
		}
		ref := domain.SourceRef{LeadID: "l1", SourceID: "s", ExternalID: "1", FirstSeenAt: now, LastSeenAt: now}
		if err := InsertLead(ctx, tx, lead, ref); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = GetLead(ctx, db.Pool, "l1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
