package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"leadengine/internal/domain"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeDomainError maps store and state-machine errors onto stable HTTP
// shapes so clients can branch on code, not message text.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrDuplicatePayment):
		WriteError(w, r, http.StatusConflict, "duplicate_payment", "payment already processed with a different result")
	case errors.As(err, &verr):
		WriteError(w, r, http.StatusUnprocessableEntity, "validation_failed", verr.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
