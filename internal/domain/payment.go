package domain

import "time"

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Payment mirrors one payment-provider transaction. PaymentID is
// provider-assigned and globally unique; it is the idempotency key for
// confirmation handling.
type Payment struct {
	PaymentID string
	UserID    string
	Plan      string
	Amount    int64 // minor units
	Currency  string
	Status    PaymentStatus
	PaidAt    time.Time
}

type AccountState string

const (
	AccountNoAccess       AccountState = "no_access"
	AccountPendingPayment AccountState = "pending_payment"
	AccountActive         AccountState = "active"
	AccountExpired        AccountState = "expired"
	AccountRefunded       AccountState = "refunded"
)

// EntitlementAccount is the paid access window for one user. Expiry is
// derived at read time from AccessUntil, never stored, so a concurrent
// extension cannot race a sweep.
type EntitlementAccount struct {
	UserID      string
	ChatID      int64 // delivery target for the paid feed, 0 if unknown
	Plan        string
	Status      AccountState // stored: no_access | pending_payment | active | refunded
	AccessUntil time.Time
	UpdatedAt   time.Time
}

// State resolves the effective state at now. A stored "active" whose window
// has passed reads as expired.
func (a EntitlementAccount) State(now time.Time) AccountState {
	if a.Status == AccountActive && !a.AccessUntil.After(now) {
		return AccountExpired
	}
	return a.Status
}

func (a EntitlementAccount) ActiveAt(now time.Time) bool {
	return a.State(now) == AccountActive
}
