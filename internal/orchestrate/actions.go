package orchestrate

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"math/rand"
	"time"

	"leadengine/internal/domain"
	"leadengine/internal/events"
	exec "leadengine/internal/exec"
	"leadengine/internal/metrics"
	"leadengine/internal/store"
)

// RunActionsOnce drains one batch of due leads through every configured
// executor. Each channel is a sequential lane: one send at a time, a
// minimum delay plus jitter between sends, a hard daily cap.
func (o *Orchestrator) RunActionsOnce(ctx context.Context) error {
	leads, err := store.DueLeads(ctx, o.db.Pool, o.cfg.Actions.Workers*25)
	if err != nil {
		return err
	}
	if len(leads) == 0 {
		return nil
	}

	for _, ex := range o.executors {
		if err := o.runLane(ctx, ex, leads); err != nil {
			log.Printf("[actions:%s] lane: %v", ex.Channel(), err)
		}
	}
	return nil
}

func (o *Orchestrator) runLane(ctx context.Context, ex exec.Executor, leads []domain.Lead) error {
	channel := ex.Channel()
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)

	first := true
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return err
		}

		if o.cfg.Actions.DailyCap > 0 {
			n, err := store.SentCountSince(ctx, o.db.Pool, channel, dayStart)
			if err != nil {
				return err
			}
			if n >= o.cfg.Actions.DailyCap {
				log.Printf("[actions:%s] daily cap %d reached", channel, o.cfg.Actions.DailyCap)
				return nil
			}
		}

		skip, err := o.preCheck(ctx, lead, channel)
		if err != nil {
			return err
		}
		if skip {
			continue
		}

		if !first {
			if err := o.pace(ctx); err != nil {
				return err
			}
		}
		first = false

		o.attempt(ctx, ex, lead)
	}
	return nil
}

// preCheck handles the states that don't need an executor at all: already
// sent on this channel, parked for manual review by an earlier blocked or
// needs_manual outcome, or contact on the blocklist. A blocked contact
// gets a recorded outcome and the lead is parked for manual review.
func (o *Orchestrator) preCheck(ctx context.Context, lead domain.Lead, channel domain.Channel) (skip bool, err error) {
	sent, err := store.HasSent(ctx, o.db.Pool, lead.ID, channel)
	if err != nil || sent {
		return true, err
	}

	parked, err := store.AwaitingReview(ctx, o.db.Pool, lead.ID, channel)
	if err != nil || parked {
		return true, err
	}

	blocked, err := store.IsBlocked(ctx, o.db.Pool, lead.Contact)
	if err != nil {
		return true, err
	}
	if !blocked {
		return false, nil
	}

	err = o.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.RecordEvent(ctx, tx, domain.ContactEvent{
			LeadID:      lead.ID,
			Channel:     channel,
			Outcome:     domain.OutcomeBlocked,
			AttemptedAt: time.Now().UTC(),
			Detail:      "contact on blocklist: " + lead.Contact,
		}); err != nil {
			return err
		}
		return store.AdvanceStatus(ctx, tx, lead.ID, domain.StatusSkipped)
	})
	if err == nil {
		metrics.Action(string(channel), string(domain.OutcomeBlocked))
		o.hub.Emit(events.TypeContactBlocked, map[string]any{
			"lead_id": lead.ID, "contact": lead.Contact, "channel": channel,
		})
	}
	return true, err
}

// attempt runs one lead through one executor, retrying transient failures
// with bounded backoff, then records the final outcome.
func (o *Orchestrator) attempt(ctx context.Context, ex exec.Executor, lead domain.Lead) {
	channel := ex.Channel()
	base := time.Duration(o.cfg.Actions.BackoffBaseSeconds) * time.Second
	max := time.Duration(o.cfg.Actions.BackoffMaxSeconds) * time.Second

	var out exec.Outcome
	for n := 1; ; n++ {
		actx, cancel := context.WithTimeout(ctx, o.cfg.Actions.Timeout())
		out = ex.Execute(actx, lead)
		cancel()

		if !out.Transient || n >= o.cfg.Actions.MaxAttempts {
			break
		}
		d := backoff(base, max, n)
		log.Printf("[actions:%s] %s attempt %d failed (%s), retrying in %s",
			channel, lead.ID, n, out.Detail, d)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}

	err := o.db.WithTx(ctx, func(tx *sql.Tx) error {
		// re-check inside the write transaction; the partial unique index
		// backstops the race either way
		if out.Status == domain.OutcomeSent {
			sent, err := store.HasSent(ctx, tx, lead.ID, channel)
			if err != nil {
				return err
			}
			if sent {
				return nil
			}
		}
		if err := store.RecordEvent(ctx, tx, domain.ContactEvent{
			LeadID:      lead.ID,
			Channel:     channel,
			Outcome:     out.Status,
			AttemptedAt: time.Now().UTC(),
			Detail:      out.Detail,
		}); err != nil {
			return err
		}
		switch out.Status {
		case domain.OutcomeSent:
			return store.AdvanceStatus(ctx, tx, lead.ID, sentStatus(channel))
		case domain.OutcomeFailed:
			if !out.Transient {
				return store.AdvanceStatus(ctx, tx, lead.ID, domain.StatusSkipped)
			}
		}
		return nil
	})
	if err != nil {
		var cerr *domain.ConsistencyError
		if errors.As(err, &cerr) {
			log.Printf("[actions:%s] %s already recorded: %v", channel, lead.ID, err)
			return
		}
		log.Printf("[actions:%s] record %s: %v", channel, lead.ID, err)
		return
	}

	metrics.Action(string(channel), string(out.Status))
	o.hub.Emit(events.TypeActionRecorded, map[string]any{
		"lead_id": lead.ID, "channel": channel, "outcome": out.Status, "detail": out.Detail,
	})
}

// pace sleeps the configured minimum delay plus jitter between sends, so
// outreach never looks machine-gunned.
func (o *Orchestrator) pace(ctx context.Context) error {
	d := time.Duration(o.cfg.Actions.MinDelaySeconds) * time.Second
	if j := o.cfg.Actions.JitterSeconds; j > 0 {
		d += time.Duration(rand.Int63n(int64(j))) * time.Second
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func sentStatus(ch domain.Channel) domain.LeadStatus {
	if ch == domain.ChannelApply {
		return domain.StatusApplied
	}
	return domain.StatusContacted
}
