package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"leadengine/internal/entitle"
)

type EntitlementsHandler struct {
	Entitle *entitle.Service
}

// Get reports an account with its state derived at request time: a stored
// "active" past its access window reads as expired here.
func (h EntitlementsHandler) Get(w http.ResponseWriter, r *http.Request) {
	acct, state, err := h.Entitle.Account(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":      acct.UserID,
		"plan":         acct.Plan,
		"state":        state,
		"access_until": acct.AccessUntil,
	})
}
