package domain

import (
	"errors"
	"fmt"
)

// RejectError marks a raw record the normalizer refused. Rejections are
// reported and dropped, never retried.
type RejectError struct {
	SourceID string
	Reason   string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("record rejected (%s): %s", e.SourceID, e.Reason)
}

// ValidationError covers malformed inputs outside the ingest path, e.g. a
// pre-checkout request whose amount does not match the plan catalog.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// TransientError wraps timeouts and connection failures. The orchestrator
// retries these with bounded exponential backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e.Op == "" {
		return "transient: " + e.Err.Error()
	}
	return "transient: " + e.Op + ": " + e.Err.Error()
}
func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ConsistencyError reports a persisted invariant violation, e.g. a second
// sent event for one (lead_id, channel). It aborts the current transaction
// and is surfaced to operators; other items keep processing.
type ConsistencyError struct {
	Msg string
}

func (e *ConsistencyError) Error() string { return "store consistency: " + e.Msg }

// ErrDuplicatePayment signals re-delivery of an already-verified payment
// confirmation. Callers treat it as success with no state change.
var ErrDuplicatePayment = errors.New("duplicate payment event")

var ErrNotFound = errors.New("not found")
