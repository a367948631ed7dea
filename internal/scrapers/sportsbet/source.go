// Package sportsbet scrapes race listings and fixed odds from Sportsbet.
package sportsbet

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

// Fetcher downloads a page without rendering it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Source lists races over plain HTTP and reads metadata through the browser.
// When the server-rendered schedule carries no race links the listing is
// retried in the browser.
type Source struct {
	fetcher     Fetcher
	opener      browser.Opener
	scheduleURL string
	origin      string
	pageTimeout time.Duration
	logger      *slog.Logger
}

func NewSource(fetcher Fetcher, opener browser.Opener, cfg config.SourceConfig, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		fetcher:     fetcher,
		opener:      opener,
		scheduleURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		origin:      Origin(cfg.BaseURL),
		pageTimeout: cfg.PageTimeout,
		logger:      logger.With("source", models.SourceSportsbet),
	}
}

func (s *Source) Name() models.Source { return models.SourceSportsbet }

func (s *Source) scheduleFor(forTomorrow bool) string {
	if forTomorrow {
		return s.scheduleURL + "/tomorrow"
	}
	return s.scheduleURL
}

func (s *Source) ListRaceURLs(ctx context.Context, forTomorrow bool) ([]string, error) {
	target := s.scheduleFor(forTomorrow)
	s.logger.Info("Fetching available race URLs", "url", target)

	ctx, cancel := context.WithTimeout(ctx, s.pageTimeout)
	defer cancel()

	var urls []string
	body, err := s.fetcher.Get(ctx, target)
	if err == nil {
		urls, err = ParseListing(string(body), s.origin)
	}
	if err != nil {
		s.logger.Warn("Schedule fetch failed", "error", err)
	}

	if len(urls) == 0 && s.opener != nil {
		s.logger.Info("No race links in served schedule, rendering in browser")
		html, berr := browser.FetchHTML(ctx, s.opener, target, linkSelector)
		if berr != nil {
			return nil, errors.Join(err, berr)
		}
		urls, err = ParseListing(html, s.origin)
	}
	if err != nil && len(urls) == 0 {
		return nil, err
	}

	s.logger.Info("Found races", "count", len(urls))
	return urls, nil
}

// FetchMetadata renders a race page and reads its heading, start time and URL.
func (s *Source) FetchMetadata(ctx context.Context, url string) (models.RaceMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.pageTimeout)
	defer cancel()

	html, err := browser.FetchHTML(ctx, s.opener, url, cardSelector)
	if err != nil {
		if errors.Is(err, models.ErrResourceUnavailable) {
			return models.RaceMetadata{}, err
		}
		return models.RaceMetadata{}, fmt.Errorf("%w: %w", models.ErrResourceUnavailable, err)
	}
	return ParseMetadata(html, url)
}
