package entitle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadengine/internal/config"
	"leadengine/internal/domain"
	"leadengine/internal/events"
	"leadengine/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db.Pool))

	catalog := NewCatalog([]config.Plan{
		{Code: "monthly", Title: "Monthly", Amount: 500, Currency: "USD", DurationDays: 30},
		{Code: "quarterly", Title: "Quarterly", Amount: 1200, Currency: "USD", DurationDays: 90},
	})
	return NewService(db, catalog, events.NewHub(nil)), db
}

func payment(id, plan string, amount int64) domain.Payment {
	return domain.Payment{
		PaymentID: id, UserID: "u1", Plan: plan,
		Amount: amount, Currency: "USD",
	}
}

func TestPreCheckoutValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	var verr *domain.ValidationError

	err := svc.PreCheckout(ctx, "u1", 7, "nope", "USD", 500)
	require.ErrorAs(t, err, &verr)

	err = svc.PreCheckout(ctx, "u1", 7, "monthly", "USD", 499)
	require.ErrorAs(t, err, &verr)

	err = svc.PreCheckout(ctx, "u1", 7, "monthly", "EUR", 500)
	require.ErrorAs(t, err, &verr)

	require.NoError(t, svc.PreCheckout(ctx, "u1", 7, "monthly", "USD", 500))
	acct, err := store.GetAccount(ctx, db.Pool, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountPendingPayment, acct.Status)
	assert.Equal(t, int64(7), acct.ChatID)
}

func TestConfirmGrantsAccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acct, err := svc.Confirm(ctx, payment("pay-1", "monthly", 500), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountActive, acct.Status)
	assert.Equal(t, "monthly", acct.Plan)

	remaining := time.Until(acct.AccessUntil)
	assert.InDelta(t, (30 * 24 * time.Hour).Hours(), remaining.Hours(), 1)

	_, state, err := svc.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountActive, state)
}

func TestConfirmReplayIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	first, err := svc.Confirm(ctx, payment("pay-1", "monthly", 500), 7)
	require.NoError(t, err)

	replay, err := svc.Confirm(ctx, payment("pay-1", "monthly", 500), 7)
	require.NoError(t, err)
	assert.Equal(t, first.AccessUntil, replay.AccessUntil, "replay must not extend access")

	p, err := store.GetPayment(ctx, db.Pool, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentVerified, p.Status)
}

func TestSecondPaymentExtendsFromCurrentExpiry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Confirm(ctx, payment("pay-1", "monthly", 500), 7)
	require.NoError(t, err)

	second, err := svc.Confirm(ctx, payment("pay-2", "monthly", 500), 7)
	require.NoError(t, err)

	got := second.AccessUntil.Sub(first.AccessUntil)
	assert.InDelta(t, (30 * 24 * time.Hour).Hours(), got.Hours(), 1,
		"early renewal stacks on the current expiry")
}

func TestRefundClampsAccess(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, payment("pay-1", "monthly", 500), 7)
	require.NoError(t, err)

	require.NoError(t, svc.Refund(ctx, "pay-1"))

	acct, state, err := svc.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountRefunded, state)
	assert.False(t, acct.AccessUntil.After(time.Now().UTC()))

	p, err := store.GetPayment(ctx, db.Pool, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, p.Status)

	// refund replay is a no-op
	require.NoError(t, svc.Refund(ctx, "pay-1"))
}

func TestRefundUnknownPayment(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Refund(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpiryIsDerived(t *testing.T) {
	_, db := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// stored active, window already past
	require.NoError(t, store.UpsertAccount(ctx, db.Pool, domain.EntitlementAccount{
		UserID: "u9", ChatID: 1, Plan: "monthly",
		Status:      domain.AccountActive,
		AccessUntil: now.Add(-time.Hour),
		UpdatedAt:   now,
	}))

	acct, err := store.GetAccount(ctx, db.Pool, "u9")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountActive, acct.Status, "stored status is untouched")
	assert.Equal(t, domain.AccountExpired, acct.State(now), "derived state reads expired")

	active, err := store.ListActiveAccounts(ctx, db.Pool, now)
	require.NoError(t, err)
	assert.Empty(t, active)
}
