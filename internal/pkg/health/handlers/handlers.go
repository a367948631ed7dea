// Package handlers implements the HTTP endpoints of the health server.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Vodeneev/raceodds/internal/coordinator"
	"github.com/Vodeneev/raceodds/internal/oddsstore"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
	"github.com/Vodeneev/raceodds/internal/pkg/performance"
)

// Runtime reports on the coordinator that is streaming odds.
type Runtime interface {
	Races() []models.MatchedRace
	Status() []coordinator.SessionStatus
}

// Handlers holds what the endpoints read from. The runtime is unset while
// race matching is still running.
type Handlers struct {
	Store   *oddsstore.Store
	Tracker *performance.Tracker

	mu      sync.RWMutex
	runtime Runtime
}

// SetRuntime attaches the coordinator once races are matched.
func (h *Handlers) SetRuntime(r Runtime) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runtime = r
}

func (h *Handlers) getRuntime() Runtime {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.runtime
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
