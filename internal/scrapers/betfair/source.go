// Package betfair scrapes race listings and exchange ladders from Betfair.
package betfair

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Vodeneev/raceodds/internal/browser"
	"github.com/Vodeneev/raceodds/internal/pkg/config"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

// tomorrowSettle is how long the schedule takes to re-render after the
// "Tomorrow" filter is clicked.
const tomorrowSettle = 3 * time.Second

// Source lists races and reads race metadata through the shared browser.
type Source struct {
	opener      browser.Opener
	scheduleURL string
	linkBase    string
	pageTimeout time.Duration
	settle      time.Duration
	logger      *slog.Logger
}

func NewSource(opener browser.Opener, cfg config.SourceConfig, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		opener:      opener,
		scheduleURL: cfg.BaseURL,
		linkBase:    linkBase(cfg.BaseURL),
		pageTimeout: cfg.PageTimeout,
		settle:      tomorrowSettle,
		logger:      logger.With("source", models.SourceBetfair),
	}
}

// linkBase is the prefix race-link hrefs are relative to: the schedule URL
// with its last path segment removed.
func linkBase(scheduleURL string) string {
	u := strings.TrimSuffix(scheduleURL, "/")
	if i := strings.LastIndex(u, "/"); i > len("https://") {
		return u[:i+1]
	}
	return u + "/"
}

func (s *Source) Name() models.Source { return models.SourceBetfair }

func (s *Source) ListRaceURLs(ctx context.Context, forTomorrow bool) ([]string, error) {
	s.logger.Info("Fetching available race URLs", "url", s.scheduleURL, "for_tomorrow", forTomorrow)

	ctx, cancel := context.WithTimeout(ctx, s.pageTimeout)
	defer cancel()

	page, err := s.opener.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := page.Navigate(ctx, s.scheduleURL, ""); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrResourceUnavailable, err)
	}
	if forTomorrow {
		if err := page.WaitVisible(ctx, tomorrowButton); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrResourceUnavailable, err)
		}
		if err := page.ClickText(ctx, tomorrowButton, "Tomorrow"); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrResourceUnavailable, err)
		}
		s.logger.Info("Switched schedule to tomorrow")
		if err := browser.Settle(ctx, s.settle); err != nil {
			return nil, err
		}
	}
	if err := page.WaitVisible(ctx, linkSelector); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrResourceUnavailable, err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrResourceUnavailable, err)
	}

	urls, err := ParseListing(html, s.linkBase)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Found races", "count", len(urls))
	return urls, nil
}

// FetchMetadata loads a market page and reads its title. A page that fails
// to load is reported as models.ErrResourceUnavailable.
func (s *Source) FetchMetadata(ctx context.Context, url string) (models.RaceMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.pageTimeout)
	defer cancel()

	html, err := browser.FetchHTML(ctx, s.opener, url, ".runner-name")
	if err != nil {
		if errors.Is(err, models.ErrResourceUnavailable) {
			return models.RaceMetadata{}, err
		}
		return models.RaceMetadata{}, fmt.Errorf("%w: %w", models.ErrResourceUnavailable, err)
	}

	meta, err := ParseMetadata(html, url)
	if err != nil {
		return models.RaceMetadata{}, err
	}
	if meta.Location == unknown {
		s.logger.Warn("Unable to extract metadata", "url", url)
	}
	return meta, nil
}
