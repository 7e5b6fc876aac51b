package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"leadengine/internal/domain"
	"leadengine/internal/store"
)

type LeadsHandler struct {
	DB *store.DB
}

// List serves the qualifying-lead feed. Filters arrive as query params:
// status (comma-separated), min_score, window (24h|7d|all), limit,
// flagged=1 for the duplicate review queue.
func (h LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := store.ListLeadsOpts{
		Window:      q.Get("window"),
		OnlyFlagged: q.Get("flagged") == "1",
	}
	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			opts.Statuses = append(opts.Statuses, domain.LeadStatus(strings.TrimSpace(s)))
		}
	}
	if v := q.Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "bad_request", "min_score must be an integer")
			return
		}
		opts.MinScore = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "bad_request", "limit must be an integer")
			return
		}
		opts.Limit = n
	}

	leads, err := store.ListLeads(r.Context(), h.DB.Pool, opts)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (h LeadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := store.GetLead(r.Context(), h.DB.Pool, chi.URLParam(r, "leadID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, lead)
}

func (h LeadsHandler) Events(w http.ResponseWriter, r *http.Request) {
	evts, err := store.EventsForLead(r.Context(), h.DB.Pool, chi.URLParam(r, "leadID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// OverrideStatus is the manual escape hatch: unlike the pipeline it may
// move a lead backwards, and it always leaves an audit event.
func (h LeadsHandler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	to := domain.LeadStatus(body.Status)
	if !to.Valid() {
		WriteError(w, r, http.StatusUnprocessableEntity, "validation_failed", "unknown status "+body.Status)
		return
	}
	if body.Reason == "" {
		WriteError(w, r, http.StatusUnprocessableEntity, "validation_failed", "reason is required")
		return
	}

	if err := h.DB.OverrideStatus(r.Context(), chi.URLParam(r, "leadID"), to, body.Reason); err != nil {
		writeDomainError(w, r, err)
		return
	}
	lead, err := store.GetLead(r.Context(), h.DB.Pool, chi.URLParam(r, "leadID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, lead)
}
