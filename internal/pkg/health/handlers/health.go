package handlers

import (
	"net/http"

	"github.com/Vodeneev/raceodds/internal/coordinator"
	"github.com/Vodeneev/raceodds/internal/session"
)

// HandlePing handles /ping endpoint
func HandlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong\n"))
}

type healthResponse struct {
	Status   string                      `json:"status"`
	Active   int                         `json:"active"`
	Sessions []coordinator.SessionStatus `json:"sessions"`
}

// HandleHealth handles /health endpoint. It answers 503 until at least one
// session is active.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "starting", Sessions: []coordinator.SessionStatus{}}
	if rt := h.getRuntime(); rt != nil {
		resp.Sessions = rt.Status()
	}
	for _, s := range resp.Sessions {
		if s.State == session.StateActive.String() {
			resp.Active++
		}
	}

	code := http.StatusOK
	switch {
	case resp.Active == 0:
		code = http.StatusServiceUnavailable
		if len(resp.Sessions) > 0 {
			resp.Status = "down"
		}
	case resp.Active < len(resp.Sessions):
		resp.Status = "degraded"
	default:
		resp.Status = "ok"
	}
	writeJSON(w, code, resp)
}
