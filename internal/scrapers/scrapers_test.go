package scrapers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Vodeneev/raceodds/internal/browser"
	"github.com/Vodeneev/raceodds/internal/pkg/config"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

type noOpener struct{}

func (noOpener) NewPage() (browser.Page, error) { return nil, errors.New("no browser in tests") }

type noFetcher struct{}

func (noFetcher) Get(context.Context, string) ([]byte, error) { return nil, errors.New("offline") }

func testSources() config.SourcesConfig {
	return config.SourcesConfig{
		Betfair:   config.SourceConfig{BaseURL: config.DefaultBetfairURL, Interval: 2 * time.Second, InitTimeout: time.Minute, PageTimeout: 30 * time.Second},
		Sportsbet: config.SourceConfig{BaseURL: config.DefaultSportsbetURL, Interval: 5 * time.Second, InitTimeout: time.Minute, PageTimeout: 30 * time.Second},
	}
}

func TestAvailable_NamesMatchKeys(t *testing.T) {
	all := Available(noOpener{}, noFetcher{}, testSources(), nil)
	if len(all) != 2 {
		t.Fatalf("scrapers = %d, want 2", len(all))
	}
	for name, s := range all {
		if s.Source.Name() != name {
			t.Errorf("scraper %q reports name %q", name, s.Source.Name())
		}
		d, err := s.NewDriver(models.RaceMetadata{Source: name, URL: "https://example.test/race"})
		if err != nil || d == nil {
			t.Errorf("NewDriver(%q) = %v, %v", name, d, err)
		}
	}
}

func TestSources_PrimaryFirst(t *testing.T) {
	all := Available(noOpener{}, noFetcher{}, testSources(), nil)
	for _, primary := range []models.Source{models.SourceBetfair, models.SourceSportsbet} {
		got := Sources(all, primary)
		if len(got) != 2 || got[0].Name() != primary {
			t.Errorf("Sources(%q)[0] = %q, want primary first", primary, got[0].Name())
		}
	}
}

func TestCoordinatorSources_CarriesIntervals(t *testing.T) {
	settings := CoordinatorSources(Available(noOpener{}, noFetcher{}, testSources(), nil))
	if got := settings[models.SourceBetfair].Interval; got != 2*time.Second {
		t.Errorf("betfair interval = %v, want 2s", got)
	}
	if got := settings[models.SourceSportsbet].InitTimeout; got != time.Minute {
		t.Errorf("sportsbet init timeout = %v, want 1m", got)
	}
}
