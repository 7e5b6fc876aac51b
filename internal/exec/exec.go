package exec

import (
	"context"

	"leadengine/internal/domain"
)

// Outcome is the classified result of one send attempt. Transient marks
// failures worth retrying with backoff; everything else is final.
type Outcome struct {
	Status    domain.Outcome
	Transient bool
	Detail    string
}

// Executor performs the outward action for one channel. Execute never
// panics the worker; classification happens here so the orchestrator only
// decides retry-vs-record.
type Executor interface {
	Channel() domain.Channel
	Execute(ctx context.Context, lead domain.Lead) Outcome
}
