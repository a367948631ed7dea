package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Vodeneev/raceodds/internal/oddsstore"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

type raceOddsResponse struct {
	Race      string             `json:"race"`
	UpdatedAt time.Time          `json:"updated_at"`
	Runners   oddsstore.RaceOdds `json:"runners"`
}

// HandleOdds handles /odds endpoint. Without parameters it returns the whole
// store; ?race=Flemington_R5 returns one race or 404.
func (h *Handlers) HandleOdds(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeJSON(w, http.StatusOK, &oddsstore.Odds{Races: map[string]oddsstore.RaceOdds{}})
		return
	}
	odds := h.Store.Load()
	w.Header().Set("X-Races-Count", fmt.Sprintf("%d", len(odds.Races)))

	key := r.URL.Query().Get("race")
	if key == "" {
		writeJSON(w, http.StatusOK, odds)
		return
	}
	race, ok := odds.Race(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("race %q not found", key)})
		return
	}
	writeJSON(w, http.StatusOK, raceOddsResponse{Race: key, UpdatedAt: odds.UpdatedAt, Runners: race})
}

// HandleRaces handles /races endpoint
func (h *Handlers) HandleRaces(w http.ResponseWriter, r *http.Request) {
	races := []models.MatchedRace{}
	if rt := h.getRuntime(); rt != nil {
		races = rt.Races()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"races": races,
		"meta":  map[string]any{"count": len(races)},
	})
}
