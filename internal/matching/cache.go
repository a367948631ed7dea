package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

// Cache persists the matched race list once per calendar day. A file not
// modified today is stale and ignored.
type Cache struct {
	path    string
	matcher Matcher
	primary models.Source
	logger  *slog.Logger
	now     func() time.Time
}

func NewCache(path string, matcher Matcher, primary models.Source, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		path:    path,
		matcher: matcher,
		primary: primary,
		logger:  logger.With("component", "match_cache", "path", path),
		now:     time.Now,
	}
}

// IsFresh reports whether the cache file was written on the current local day.
func (c *Cache) IsFresh() bool {
	info, err := os.Stat(c.path)
	if err != nil {
		return false
	}
	return sameDay(info.ModTime(), c.now())
}

func sameDay(a, b time.Time) bool {
	a, b = a.Local(), b.Local()
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// LoadOrCreate returns today's upcoming matched races, reading the cache when
// it is fresh and re-running the matcher otherwise. forTomorrow keeps races
// whose start time has already passed today; it does not change which day's
// listings the sources are scraped for.
func (c *Cache) LoadOrCreate(ctx context.Context, forTomorrow bool) ([]models.MatchedRace, error) {
	var (
		races []models.MatchedRace
		err   error
	)
	if c.IsFresh() {
		c.logger.Info("Reading matched races from cache")
		races, err = c.read()
		if err != nil {
			c.logger.Warn("Cache unreadable, running match", "error", err)
			races, err = c.Refresh(ctx, false)
		}
	} else {
		c.logger.Info("No cache or outdated cache, running match")
		races, err = c.Refresh(ctx, false)
	}
	if err != nil {
		return nil, err
	}

	if forTomorrow {
		c.logger.Info("Serving matched races with for_tomorrow set")
	} else {
		races = FilterUpcoming(races, c.primary, c.now())
	}
	SortByStart(races, c.primary, c.now())
	return races, nil
}

// Refresh re-runs the matcher and overwrites the cache file. forTomorrow asks
// the sources for tomorrow's listings.
func (c *Cache) Refresh(ctx context.Context, forTomorrow bool) ([]models.MatchedRace, error) {
	races, err := c.matcher.Match(ctx, forTomorrow)
	if err != nil {
		return nil, err
	}
	SortByStart(races, c.primary, c.now())
	if err := c.write(races); err != nil {
		return nil, err
	}
	c.logger.Info("Cache updated", "races", len(races))
	return races, nil
}

func (c *Cache) read() ([]models.MatchedRace, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read match cache: %w", err)
	}
	var races []models.MatchedRace
	if err := json.Unmarshal(data, &races); err != nil {
		return nil, fmt.Errorf("decode match cache: %w", err)
	}
	return races, nil
}

// write replaces the cache file via rename so readers never see a partial file.
func (c *Cache) write(races []models.MatchedRace) error {
	if races == nil {
		races = []models.MatchedRace{}
	}
	data, err := json.MarshalIndent(races, "", "  ")
	if err != nil {
		return fmt.Errorf("encode match cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write match cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close match cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace match cache: %w", err)
	}
	return nil
}

// FilterUpcoming keeps races whose primary-source start time is later today
// than now. Races with an unparseable time are dropped.
func FilterUpcoming(races []models.MatchedRace, primary models.Source, now time.Time) []models.MatchedRace {
	out := make([]models.MatchedRace, 0, len(races))
	for _, r := range races {
		m, ok := r.Primary(primary)
		if !ok {
			continue
		}
		start, ok := m.StartOn(now)
		if ok && start.After(now) {
			out = append(out, r)
		}
	}
	return out
}
