package handlers

import (
	"net/http"

	"github.com/Vodeneev/raceodds/internal/pkg/performance"
)

// HandleMetrics handles /metrics endpoint
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	tracker := h.Tracker
	if tracker == nil {
		tracker = performance.GetTracker()
	}
	writeJSON(w, http.StatusOK, tracker.Snapshot())
}
