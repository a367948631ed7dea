// Package scrapers wires every supported source into the matching engine and
// the coordinator.
package scrapers

import (
	"log/slog"

	"github.com/Vodeneev/raceodds/internal/browser"
	"github.com/Vodeneev/raceodds/internal/coordinator"
	"github.com/Vodeneev/raceodds/internal/matching"
	"github.com/Vodeneev/raceodds/internal/pkg/config"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
	"github.com/Vodeneev/raceodds/internal/scrapers/betfair"
	"github.com/Vodeneev/raceodds/internal/scrapers/sportsbet"
	"github.com/Vodeneev/raceodds/internal/session"
)

// Scraper bundles what one source contributes: listing and metadata for
// matching, and a driver per race for streaming.
type Scraper struct {
	Source    matching.Source
	NewDriver coordinator.DriverFactory
	Config    config.SourceConfig
}

// Available builds a scraper for every supported source. All browser work
// shares opener; fetcher serves sources that list over plain HTTP.
func Available(opener browser.Opener, fetcher sportsbet.Fetcher, cfg config.SourcesConfig, logger *slog.Logger) map[models.Source]Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return map[models.Source]Scraper{
		models.SourceBetfair: {
			Source: betfair.NewSource(opener, cfg.Betfair, logger),
			NewDriver: func(race models.RaceMetadata) (session.Driver, error) {
				return betfair.NewDriver(opener, race, cfg.Betfair.PageTimeout), nil
			},
			Config: cfg.Betfair,
		},
		models.SourceSportsbet: {
			Source: sportsbet.NewSource(fetcher, opener, cfg.Sportsbet, logger),
			NewDriver: func(race models.RaceMetadata) (session.Driver, error) {
				return sportsbet.NewDriver(opener, race, cfg.Sportsbet.PageTimeout), nil
			},
			Config: cfg.Sportsbet,
		},
	}
}

// Sources returns the matching sources, primary first.
func Sources(all map[models.Source]Scraper, primary models.Source) []matching.Source {
	out := make([]matching.Source, 0, len(all))
	if s, ok := all[primary]; ok {
		out = append(out, s.Source)
	}
	for _, name := range []models.Source{models.SourceBetfair, models.SourceSportsbet} {
		if s, ok := all[name]; ok && name != primary {
			out = append(out, s.Source)
		}
	}
	return out
}

// CoordinatorSources returns the per-source settings the coordinator streams with.
func CoordinatorSources(all map[models.Source]Scraper) map[models.Source]coordinator.SourceSettings {
	out := make(map[models.Source]coordinator.SourceSettings, len(all))
	for name, s := range all {
		out[name] = coordinator.SourceSettings{
			NewDriver:   s.NewDriver,
			Interval:    s.Config.Interval,
			InitTimeout: s.Config.InitTimeout,
		}
	}
	return out
}
