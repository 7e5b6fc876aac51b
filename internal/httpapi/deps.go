package httpapi

import (
	"leadengine/internal/entitle"
	"leadengine/internal/events"
	"leadengine/internal/orchestrate"
	"leadengine/internal/store"
)

// Deps is everything the handlers need; main wires it once.
type Deps struct {
	DB      *store.DB
	Hub     *events.Hub
	Orch    *orchestrate.Orchestrator
	Entitle *entitle.Service

	// WebhookSecret gates the payment webhook; empty disables the check
	// (local development only).
	WebhookSecret string
}
