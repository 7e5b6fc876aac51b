package orchestrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadengine/internal/config"
	"leadengine/internal/domain"
	"leadengine/internal/events"
	exec "leadengine/internal/exec"
	"leadengine/internal/store"
)

type fakeExecutor struct {
	channel  domain.Channel
	outcomes []exec.Outcome // consumed per call; last one repeats
	calls    []string
}

func (f *fakeExecutor) Channel() domain.Channel { return f.channel }

func (f *fakeExecutor) Execute(ctx context.Context, lead domain.Lead) exec.Outcome {
	f.calls = append(f.calls, lead.ID)
	out := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	return out
}

func newTestOrchestrator(t *testing.T, actions config.Actions, ex exec.Executor) (*Orchestrator, *store.DB) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db.Pool))

	cfg := config.Config{Actions: actions}
	cfg, _ = config.NormalizeAndValidate(cfg)
	o, err := New(cfg, db, events.NewHub(nil), []exec.Executor{ex})
	require.NoError(t, err)
	return o, db
}

func seedDueLead(t *testing.T, db *store.DB, id, contact string, firstSeen time.Time) {
	t.Helper()
	lead := domain.Lead{
		ID: id, Fingerprint: id, Title: "Engineer " + id, Company: "Acme",
		Contact: contact, URL: "https://x.example/" + id,
		Status: domain.StatusNew, FirstSeenAt: firstSeen, LastSeenAt: firstSeen,
	}
	ref := domain.SourceRef{LeadID: id, SourceID: "s", ExternalID: id, FirstSeenAt: firstSeen, LastSeenAt: firstSeen}
	require.NoError(t, store.InsertLead(context.Background(), db.Pool, lead, ref))
}

func TestActionsSendRecordsAndAdvances(t *testing.T) {
	ex := &fakeExecutor{channel: domain.ChannelEmail, outcomes: []exec.Outcome{{Status: domain.OutcomeSent}}}
	o, db := newTestOrchestrator(t, config.Actions{}, ex)
	ctx := context.Background()

	seedDueLead(t, db, "l1", "a@b.c", time.Now().UTC())
	require.NoError(t, o.RunActionsOnce(ctx))

	assert.Equal(t, []string{"l1"}, ex.calls)

	got, err := store.GetLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, got.Status)

	evts, err := store.EventsForLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, domain.OutcomeSent, evts[0].Outcome)

	// second run finds nothing due and never re-sends
	require.NoError(t, o.RunActionsOnce(ctx))
	assert.Equal(t, []string{"l1"}, ex.calls)
}

func TestActionsBlockedContactSkipsExecutor(t *testing.T) {
	ex := &fakeExecutor{channel: domain.ChannelEmail, outcomes: []exec.Outcome{{Status: domain.OutcomeSent}}}
	o, db := newTestOrchestrator(t, config.Actions{}, ex)
	ctx := context.Background()

	seedDueLead(t, db, "l1", "dead@b.c", time.Now().UTC())
	require.NoError(t, store.AddToBlocklist(ctx, db.Pool, "dead@b.c", "bounce", time.Now().UTC()))

	require.NoError(t, o.RunActionsOnce(ctx))
	assert.Empty(t, ex.calls, "blocked contacts never reach the executor")

	evts, err := store.EventsForLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, domain.OutcomeBlocked, evts[0].Outcome)

	got, err := store.GetLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, got.Status)
}

func TestActionsBlockedOutcomeParksLead(t *testing.T) {
	ex := &fakeExecutor{
		channel:  domain.ChannelEmail,
		outcomes: []exec.Outcome{{Status: domain.OutcomeBlocked, Detail: "captcha gate"}},
	}
	o, db := newTestOrchestrator(t, config.Actions{}, ex)
	ctx := context.Background()

	seedDueLead(t, db, "l1", "a@b.c", time.Now().UTC())
	require.NoError(t, o.RunActionsOnce(ctx))
	require.NoError(t, o.RunActionsOnce(ctx))

	assert.Equal(t, []string{"l1"}, ex.calls, "a parked lead never re-enters on its own")

	evts, err := store.EventsForLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, domain.OutcomeBlocked, evts[0].Outcome)
	assert.Equal(t, "captcha gate", evts[0].Detail)

	got, err := store.GetLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, got.Status, "parked leads keep their status for review")
}

func TestActionsNeedsManualParkedUntilOverride(t *testing.T) {
	ex := &fakeExecutor{
		channel: domain.ChannelEmail,
		outcomes: []exec.Outcome{
			{Status: domain.OutcomeNeedsManual, Detail: "no contact on file"},
			{Status: domain.OutcomeSent},
		},
	}
	o, db := newTestOrchestrator(t, config.Actions{}, ex)
	ctx := context.Background()

	seedDueLead(t, db, "l1", "a@b.c", time.Now().UTC())
	require.NoError(t, o.RunActionsOnce(ctx))
	require.NoError(t, o.RunActionsOnce(ctx))
	assert.Equal(t, []string{"l1"}, ex.calls)

	// the operator requeues the lead; the override event clears the park
	require.NoError(t, db.OverrideStatus(ctx, "l1", domain.StatusQueued, "contact confirmed"))
	require.NoError(t, o.RunActionsOnce(ctx))

	assert.Equal(t, []string{"l1", "l1"}, ex.calls)
	got, err := store.GetLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, got.Status)
}

func TestActionsTransientFailureRetriesBounded(t *testing.T) {
	ex := &fakeExecutor{
		channel: domain.ChannelEmail,
		outcomes: []exec.Outcome{
			{Status: domain.OutcomeFailed, Transient: true, Detail: "timeout"},
			{Status: domain.OutcomeSent},
		},
	}
	o, db := newTestOrchestrator(t, config.Actions{
		MaxAttempts:        3,
		BackoffBaseSeconds: 1, // test override; NormalizeAndValidate keeps nonzero values
	}, ex)
	ctx := context.Background()

	seedDueLead(t, db, "l1", "a@b.c", time.Now().UTC())
	require.NoError(t, o.RunActionsOnce(ctx))

	assert.Len(t, ex.calls, 2, "one retry after the transient failure")
	got, err := store.GetLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, got.Status)
}

func TestActionsPermanentFailureSkipsLead(t *testing.T) {
	ex := &fakeExecutor{
		channel:  domain.ChannelEmail,
		outcomes: []exec.Outcome{{Status: domain.OutcomeFailed, Detail: "550 user unknown"}},
	}
	o, db := newTestOrchestrator(t, config.Actions{}, ex)
	ctx := context.Background()

	seedDueLead(t, db, "l1", "a@b.c", time.Now().UTC())
	require.NoError(t, o.RunActionsOnce(ctx))

	assert.Len(t, ex.calls, 1, "permanent failures never retry")
	got, err := store.GetLead(ctx, db.Pool, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSkipped, got.Status)
}

func TestActionsDailyCap(t *testing.T) {
	ex := &fakeExecutor{channel: domain.ChannelEmail, outcomes: []exec.Outcome{{Status: domain.OutcomeSent}}}
	o, db := newTestOrchestrator(t, config.Actions{DailyCap: 1}, ex)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	seedDueLead(t, db, "l1", "a@b.c", base)
	seedDueLead(t, db, "l2", "a@b.c", base.Add(time.Minute))

	require.NoError(t, o.RunActionsOnce(ctx))
	assert.Equal(t, []string{"l1"}, ex.calls, "cap stops the lane after one send")
}

func TestActionsDeterministicOrder(t *testing.T) {
	ex := &fakeExecutor{channel: domain.ChannelEmail, outcomes: []exec.Outcome{{Status: domain.OutcomeSent}}}
	o, db := newTestOrchestrator(t, config.Actions{}, ex)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedDueLead(t, db, "z", "a@b.c", base)
	seedDueLead(t, db, "m", "a@b.c", base.Add(time.Minute))
	seedDueLead(t, db, "a", "a@b.c", base.Add(time.Minute))

	require.NoError(t, o.RunActionsOnce(ctx))
	assert.Equal(t, []string{"z", "a", "m"}, ex.calls)
}
