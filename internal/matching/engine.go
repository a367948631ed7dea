// Package matching discovers races listed on every source and joins their
// per-source metadata by MatchKey.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

// Source is the metadata side of a bookmaker scraper.
type Source interface {
	Name() models.Source
	// ListRaceURLs returns every race page currently advertised.
	ListRaceURLs(ctx context.Context, forTomorrow bool) ([]string, error)
	// FetchMetadata resolves one race page. Errors wrapping
	// models.ErrResourceUnavailable drop the race; any other error aborts the run.
	FetchMetadata(ctx context.Context, url string) (models.RaceMetadata, error)
}

// Matcher produces the matched race list.
type Matcher interface {
	Match(ctx context.Context, forTomorrow bool) ([]models.MatchedRace, error)
}

type Engine struct {
	sources   []Source
	primary   models.Source
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

var _ Matcher = (*Engine)(nil)

func NewEngine(primary models.Source, batchSize int, logger *slog.Logger, sources ...Source) *Engine {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sources:   sources,
		primary:   primary,
		batchSize: batchSize,
		logger:    logger.With("component", "matching"),
		now:       time.Now,
	}
}

// Match lists and resolves every source concurrently, then returns the races
// every source knows about, sorted by the primary source's start time.
func (e *Engine) Match(ctx context.Context, forTomorrow bool) ([]models.MatchedRace, error) {
	listings := make([][]models.RaceMetadata, len(e.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range e.sources {
		g.Go(func() error {
			races, err := e.collect(gctx, src, forTomorrow)
			if err != nil {
				return err
			}
			listings[i] = races
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keyMaps := make([]map[models.MatchKey]models.RaceMetadata, len(listings))
	for i, races := range listings {
		keyMaps[i] = e.buildKeyMap(e.sources[i].Name(), races)
	}

	matched := Intersect(keyMaps)
	e.logger.Info("Matched races across all sources", "matched", len(matched), "sources", len(e.sources))

	SortByStart(matched, e.primary, e.now())
	return matched, nil
}

// collect lists one source and fetches metadata for its races in batches.
func (e *Engine) collect(ctx context.Context, src Source, forTomorrow bool) ([]models.RaceMetadata, error) {
	log := e.logger.With("source", src.Name())

	urls, err := src.ListRaceURLs(ctx, forTomorrow)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("Failed to list races, dropping source listing", "error", err)
		return nil, nil
	}
	log.Info("Listed races", "count", len(urls), "for_tomorrow", forTomorrow)

	races := make([]models.RaceMetadata, 0, len(urls))
	for start := 0; start < len(urls); start += e.batchSize {
		end := min(start+e.batchSize, len(urls))
		log.Info("Fetching race metadata", "from", start+1, "to", end)

		batch, err := e.fetchBatch(ctx, src, urls[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %s races %d-%d: %w", models.ErrMatchingIncomplete, src.Name(), start+1, end, err)
		}
		races = append(races, batch...)
	}
	return races, nil
}

func (e *Engine) fetchBatch(ctx context.Context, src Source, urls []string) ([]models.RaceMetadata, error) {
	results := make([]*models.RaceMetadata, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			meta, err := src.FetchMetadata(gctx, u)
			if err != nil {
				if errors.Is(err, models.ErrResourceUnavailable) && gctx.Err() == nil {
					e.logger.Warn("Dropping race without metadata", "source", src.Name(), "url", u, "error", err)
					return nil
				}
				return err
			}
			meta.Source = src.Name()
			results[i] = &meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.RaceMetadata, 0, len(results))
	for _, m := range results {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// buildKeyMap indexes one source's races by MatchKey. The first listing of a
// key wins; later duplicates are logged and dropped.
func (e *Engine) buildKeyMap(source models.Source, races []models.RaceMetadata) map[models.MatchKey]models.RaceMetadata {
	out := make(map[models.MatchKey]models.RaceMetadata, len(races))
	for _, r := range races {
		key := models.MakeKey(r)
		if prev, dup := out[key]; dup {
			e.logger.Warn("Duplicate match key within source", "source", source, "key", key.String(), "kept", prev.URL, "dropped", r.URL)
			continue
		}
		out[key] = r
	}
	return out
}

// Intersect joins the per-source key maps on the keys present in all of them.
func Intersect(keyMaps []map[models.MatchKey]models.RaceMetadata) []models.MatchedRace {
	if len(keyMaps) == 0 {
		return nil
	}

	var matched []models.MatchedRace
	for key, first := range keyMaps[0] {
		race := models.MatchedRace{first.Source: first}
		for _, other := range keyMaps[1:] {
			m, ok := other[key]
			if !ok {
				race = nil
				break
			}
			race[m.Source] = m
		}
		if race != nil {
			matched = append(matched, race)
		}
	}
	return matched
}

// SortByStart orders races by the primary source's race time on day. Races
// without a parseable time go last; ties are broken by MatchKey.
func SortByStart(races []models.MatchedRace, primary models.Source, day time.Time) {
	type sortKey struct {
		start time.Time
		ok    bool
		key   string
	}
	keyOf := func(r models.MatchedRace) sortKey {
		m, _ := r.Primary(primary)
		start, ok := m.StartOn(day)
		return sortKey{start: start, ok: ok, key: r.Key().String()}
	}

	sort.SliceStable(races, func(i, j int) bool {
		a, b := keyOf(races[i]), keyOf(races[j])
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && !a.start.Equal(b.start) {
			return a.start.Before(b.start)
		}
		return a.key < b.key
	})
}
