// Package oddsstore holds the latest cross-source odds for every matched race.
package oddsstore

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

// RaceOdds maps runner -> source -> quote. A source appears under a runner
// only when it reported that runner in its latest snapshot.
type RaceOdds map[models.RunnerName]map[models.Source]models.Quote

// Runners returns the runner names in lexical order.
func (r RaceOdds) Runners() []models.RunnerName {
	out := make([]models.RunnerName, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Odds is one published generation of the store. It is never modified after
// Publish.
type Odds struct {
	Races     map[string]RaceOdds `json:"races"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Race returns the odds for a race key such as "Flemington_R5".
func (o *Odds) Race(key string) (RaceOdds, bool) {
	if o == nil {
		return nil, false
	}
	r, ok := o.Races[key]
	return r, ok
}

// RaceKeys returns the race keys in lexical order.
func (o *Odds) RaceKeys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, 0, len(o.Races))
	for k := range o.Races {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var empty = &Odds{Races: map[string]RaceOdds{}}

// Store publishes Odds generations with a single pointer swap.
type Store struct {
	current atomic.Pointer[Odds]
}

func New() *Store {
	return &Store{}
}

// Load returns the latest published generation, or an empty one before the
// first Publish. The result must be treated as read-only.
func (s *Store) Load() *Odds {
	if o := s.current.Load(); o != nil {
		return o
	}
	return empty
}

// Publish replaces the current generation. Only the aggregator calls it.
func (s *Store) Publish(o *Odds) {
	if o == nil {
		return
	}
	if o.Races == nil {
		o.Races = map[string]RaceOdds{}
	}
	s.current.Store(o)
}
