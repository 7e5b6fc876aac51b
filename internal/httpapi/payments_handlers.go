package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leadengine/internal/domain"
	"leadengine/internal/entitle"
)

type PaymentsHandler struct {
	Entitle *entitle.Service
	Secret  string
}

func (h PaymentsHandler) authorized(r *http.Request) bool {
	if h.Secret == "" {
		return true
	}
	got := r.Header.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) == 1
}

// PreCheckout answers the provider's pre-checkout query. Approval means
// the plan exists and the amount matches it exactly.
func (h PaymentsHandler) PreCheckout(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		WriteError(w, r, http.StatusUnauthorized, "unauthorized", "bad webhook secret")
		return
	}
	var body struct {
		UserID   string `json:"user_id"`
		ChatID   int64  `json:"chat_id"`
		Plan     string `json:"plan"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if body.UserID == "" {
		WriteError(w, r, http.StatusUnprocessableEntity, "validation_failed", "user_id is required")
		return
	}

	err := h.Entitle.PreCheckout(r.Context(), body.UserID, body.ChatID, body.Plan, body.Currency, body.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Webhook handles the successful-payment callback. Replays of the same
// payment_id return 200 with the unchanged grant.
func (h PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		WriteError(w, r, http.StatusUnauthorized, "unauthorized", "bad webhook secret")
		return
	}
	var body struct {
		PaymentID string `json:"payment_id"`
		UserID    string `json:"user_id"`
		ChatID    int64  `json:"chat_id"`
		Plan      string `json:"plan"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		PaidAt    string `json:"paid_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if body.PaymentID == "" || body.UserID == "" {
		WriteError(w, r, http.StatusUnprocessableEntity, "validation_failed", "payment_id and user_id are required")
		return
	}

	p := domain.Payment{
		PaymentID: body.PaymentID,
		UserID:    body.UserID,
		Plan:      body.Plan,
		Amount:    body.Amount,
		Currency:  body.Currency,
		Status:    domain.PaymentVerified,
	}
	if body.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, body.PaidAt); err == nil {
			p.PaidAt = t.UTC()
		}
	}

	acct, err := h.Entitle.Confirm(r.Context(), p, body.ChatID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			WriteError(w, r, http.StatusConflict, "duplicate_payment", "payment id seen before with a different result")
			return
		}
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":      acct.UserID,
		"plan":         acct.Plan,
		"status":       acct.Status,
		"access_until": acct.AccessUntil,
	})
}

func (h PaymentsHandler) Refund(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		WriteError(w, r, http.StatusUnauthorized, "unauthorized", "bad webhook secret")
		return
	}
	if err := h.Entitle.Refund(r.Context(), chi.URLParam(r, "paymentID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
