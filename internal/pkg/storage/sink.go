// Package storage persists published odds store generations.
package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Vodeneev/raceodds/internal/oddsstore"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

// QuoteRow is one (race, runner, source) quote flattened for storage.
type QuoteRow struct {
	RaceKey   string
	Runner    string
	Source    string
	Number    string
	BestBack  *float64
	BestLay   *float64
	Quote     []byte // JSON of models.Quote
	UpdatedAt time.Time
}

// BuildRows flattens odds into rows ordered by race, runner and source.
func BuildRows(odds *oddsstore.Odds) ([]QuoteRow, error) {
	var rows []QuoteRow
	for _, raceKey := range odds.RaceKeys() {
		race := odds.Races[raceKey]
		for _, runner := range race.Runners() {
			bySource := race[runner]
			sources := make([]string, 0, len(bySource))
			for s := range bySource {
				sources = append(sources, string(s))
			}
			sort.Strings(sources)

			for _, source := range sources {
				q := bySource[models.Source(source)]
				data, err := json.Marshal(q)
				if err != nil {
					return nil, fmt.Errorf("encode quote %s/%s/%s: %w", raceKey, runner, source, err)
				}
				rows = append(rows, QuoteRow{
					RaceKey:   raceKey,
					Runner:    string(runner),
					Source:    source,
					Number:    q.Number,
					BestBack:  q.Back[0].Price,
					BestLay:   q.Lay[0].Price,
					Quote:     data,
					UpdatedAt: odds.UpdatedAt,
				})
			}
		}
	}
	return rows, nil
}
