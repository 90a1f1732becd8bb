package handlers

import (
	"log/slog"
	"net/http"
)

type dbStatus struct {
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	State    string `json:"state"`
	Driver   string `json:"driver,omitempty"`
	Cards    int    `json:"cards"`
}

// HandleDBStatus reports whether the card store is reachable and populated.
func (h *Handler) HandleDBStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireMethod(w, r, http.MethodGet) {
		return
	}
	if h.store == nil {
		h.writeJSON(w, dbStatus{Message: "No card store configured", State: "error"})
		return
	}

	status := dbStatus{Driver: h.store.Driver()}
	n, err := h.store.CountCards(r.Context())
	switch {
	case err != nil:
		slog.Warn("Database status check failed", "err", err)
		status.Message = "Database connection failed"
		status.State = "error"
	case n == 0:
		status.Progress = 50
		status.Message = "Database connected but no cards found. Run catalog sync."
		status.State = "initializing"
	default:
		status.Progress = 100
		status.Message = "Database ready"
		status.State = "ready"
		status.Cards = n
	}
	h.writeJSON(w, status)
}
