package entitle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"leadengine/internal/domain"
	"leadengine/internal/events"
	"leadengine/internal/metrics"
	"leadengine/internal/store"
)

// Service drives the payment and entitlement state machine. Every
// transition runs in one transaction, and every external confirmation is
// idempotent on its payment_id.
type Service struct {
	db      *store.DB
	catalog *Catalog
	hub     *events.Hub
}

func NewService(db *store.DB, catalog *Catalog, hub *events.Hub) *Service {
	return &Service{db: db, catalog: catalog, hub: hub}
}

// PreCheckout validates an inbound checkout request against the plan
// catalog before any money moves. Amount and currency must match the plan
// exactly; a mismatch is a hard reject, never a rounding accommodation.
func (s *Service) PreCheckout(ctx context.Context, userID string, chatID int64, planCode, currency string, amount int64) error {
	plan, err := s.catalog.Lookup(planCode)
	if err != nil {
		return &domain.ValidationError{Field: "plan", Msg: err.Error()}
	}
	if amount != plan.Amount || currency != plan.Currency {
		return &domain.ValidationError{
			Field: "amount",
			Msg: fmt.Sprintf("expected %d %s for plan %s, got %d %s",
				plan.Amount, plan.Currency, plan.Code, amount, currency),
		}
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		acct, err := store.GetAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		// an already-active account stays active; pending only marks the
		// checkout window for accounts without access
		if acct.State(time.Now().UTC()) == domain.AccountActive {
			return nil
		}
		acct.ChatID = chatID
		acct.Plan = plan.Code
		acct.Status = domain.AccountPendingPayment
		acct.UpdatedAt = time.Now().UTC()
		return store.UpsertAccount(ctx, tx, acct)
	})
}

// Confirm applies one verified payment. Replays of the same payment_id
// return the account as-is; a fresh payment extends access from the later
// of now and the current expiry, so paying early never loses days.
func (s *Service) Confirm(ctx context.Context, p domain.Payment, chatID int64) (domain.EntitlementAccount, error) {
	plan, err := s.catalog.Lookup(p.Plan)
	if err != nil {
		return domain.EntitlementAccount{}, &domain.ValidationError{Field: "plan", Msg: err.Error()}
	}

	var acct domain.EntitlementAccount
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		existing, err := store.GetPayment(ctx, tx, p.PaymentID)
		if err == nil {
			if existing.Status == domain.PaymentVerified {
				// replayed confirmation: current grant stands
				acct, err = store.GetAccount(ctx, tx, p.UserID)
				return err
			}
			return domain.ErrDuplicatePayment
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		p.Status = domain.PaymentVerified
		if p.PaidAt.IsZero() {
			p.PaidAt = time.Now().UTC()
		}
		if err := store.InsertPayment(ctx, tx, p); err != nil {
			return err
		}

		acct, err = store.GetAccount(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		from := now
		if acct.AccessUntil.After(now) {
			from = acct.AccessUntil
		}
		acct.ChatID = chatID
		acct.Plan = plan.Code
		acct.Status = domain.AccountActive
		acct.AccessUntil = from.Add(duration(plan))
		acct.UpdatedAt = now
		return store.UpsertAccount(ctx, tx, acct)
	})
	if err != nil {
		metrics.PaymentReceived(p.Plan, "rejected")
		return domain.EntitlementAccount{}, err
	}

	metrics.PaymentReceived(p.Plan, "verified")
	s.hub.Emit(events.TypePaymentVerified, map[string]any{
		"payment_id": p.PaymentID, "user_id": p.UserID, "plan": p.Plan,
		"access_until": acct.AccessUntil,
	})
	return acct, nil
}

// Refund reverses one verified payment: the payment flips to refunded and
// access ends now. Days already consumed are not re-granted elsewhere.
func (s *Service) Refund(ctx context.Context, paymentID string) error {
	var userID string
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		p, err := store.GetPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Status == domain.PaymentRefunded {
			return nil
		}
		if p.Status != domain.PaymentVerified {
			return &domain.ValidationError{Field: "payment", Msg: "only verified payments can be refunded"}
		}
		if err := store.SetPaymentStatus(ctx, tx, paymentID, domain.PaymentRefunded); err != nil {
			return err
		}

		userID = p.UserID
		acct, err := store.GetAccount(ctx, tx, p.UserID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		acct.Status = domain.AccountRefunded
		if acct.AccessUntil.After(now) {
			acct.AccessUntil = now
		}
		acct.UpdatedAt = now
		return store.UpsertAccount(ctx, tx, acct)
	})
	if err != nil {
		return err
	}

	log.Printf("[entitle] refunded payment %s (user %s)", paymentID, userID)
	s.hub.Emit(events.TypePaymentRefunded, map[string]any{
		"payment_id": paymentID, "user_id": userID,
	})
	return nil
}

// Account returns the stored account with its state derived at now.
func (s *Service) Account(ctx context.Context, userID string) (domain.EntitlementAccount, domain.AccountState, error) {
	acct, err := store.GetAccount(ctx, s.db.Pool, userID)
	if err != nil {
		return acct, "", err
	}
	return acct, acct.State(time.Now().UTC()), nil
}
