package httpapi

import (
	"net/http"

	"leadengine/internal/orchestrate"
)

type ScanHandler struct {
	Orch *orchestrate.Orchestrator
}

// Run starts a scan in the background; 202 means started, 409 means one
// is already in flight.
func (h ScanHandler) Run(w http.ResponseWriter, r *http.Request) {
	if !h.Orch.TriggerScan(r.Context()) {
		WriteError(w, r, http.StatusConflict, "scan_running", "a scan is already in progress")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"started": true})
}

func (h ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	last, scanning := h.Orch.Status()
	WriteJSON(w, http.StatusOK, map[string]any{
		"scanning":  scanning,
		"last_scan": last,
	})
}
