package matching

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

// countingMatcher returns a fixed result and counts calls.
type countingMatcher struct {
	races    []models.MatchedRace
	err      error
	calls    int
	tomorrow int
}

func (m *countingMatcher) Match(ctx context.Context, forTomorrow bool) ([]models.MatchedRace, error) {
	m.calls++
	if forTomorrow {
		m.tomorrow++
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.races, nil
}

func matched(name string, at string) models.MatchedRace {
	a := horse(name, 1, at)
	a.Source = "A"
	b := horse(name, 1, at)
	b.Source = "B"
	return models.MatchedRace{"A": a, "B": b}
}

func newTestCache(t *testing.T, m Matcher, now time.Time) *Cache {
	t.Helper()
	c := NewCache(filepath.Join(t.TempDir(), "matched_races.json"), m, "A", quietLogger())
	c.now = func() time.Time { return now }
	return c
}

func writeCacheFile(t *testing.T, path string, races []models.MatchedRace, mtime time.Time) {
	t.Helper()
	data, err := json.Marshal(races)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestCache_ReusesFileWrittenToday(t *testing.T) {
	now := time.Date(2026, 6, 10, 11, 0, 0, 0, time.Local)
	m := &countingMatcher{races: []models.MatchedRace{matched("Fresh", "15:00")}}
	c := newTestCache(t, m, now)

	writeCacheFile(t, c.path, []models.MatchedRace{matched("Cached", "16:00")}, now.Add(-2*time.Hour))

	got, err := c.LoadOrCreate(context.Background(), false)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if m.calls != 0 {
		t.Errorf("matcher called %d times, want 0 for a fresh cache", m.calls)
	}
	if len(got) != 1 || got[0]["A"].RaceName != "Cached" {
		t.Errorf("LoadOrCreate = %v, want the cached race", got)
	}
}

func TestCache_RecomputesStaleFile(t *testing.T) {
	now := time.Date(2026, 6, 10, 11, 0, 0, 0, time.Local)
	m := &countingMatcher{races: []models.MatchedRace{matched("Fresh", "15:00")}}
	c := newTestCache(t, m, now)

	writeCacheFile(t, c.path, []models.MatchedRace{matched("Cached", "16:00")}, now.AddDate(0, 0, -1))

	got, err := c.LoadOrCreate(context.Background(), false)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if m.calls != 1 {
		t.Errorf("matcher called %d times, want 1 for a stale cache", m.calls)
	}
	if len(got) != 1 || got[0]["A"].RaceName != "Fresh" {
		t.Errorf("LoadOrCreate = %v, want the recomputed race", got)
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	var onDisk []models.MatchedRace
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("decode cache: %v", err)
	}
	if len(onDisk) != 1 || onDisk[0]["B"].RaceName != "Fresh" {
		t.Errorf("cache file = %v, want overwritten with recomputed races", onDisk)
	}
}

func TestCache_MissingFileRunsMatch(t *testing.T) {
	now := time.Date(2026, 6, 10, 11, 0, 0, 0, time.Local)
	m := &countingMatcher{races: []models.MatchedRace{}}
	c := newTestCache(t, m, now)

	if c.IsFresh() {
		t.Fatal("IsFresh() = true for missing file")
	}
	if _, err := c.LoadOrCreate(context.Background(), false); err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if m.calls != 1 {
		t.Errorf("matcher called %d times, want 1", m.calls)
	}
	if _, err := os.Stat(c.path); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
}

func TestCache_MatchErrorDoesNotWrite(t *testing.T) {
	now := time.Date(2026, 6, 10, 11, 0, 0, 0, time.Local)
	m := &countingMatcher{err: models.ErrMatchingIncomplete}
	c := newTestCache(t, m, now)

	if _, err := c.LoadOrCreate(context.Background(), false); !errors.Is(err, models.ErrMatchingIncomplete) {
		t.Fatalf("LoadOrCreate err = %v, want ErrMatchingIncomplete", err)
	}
	if _, err := os.Stat(c.path); !os.IsNotExist(err) {
		t.Errorf("cache file should not exist after failed match, stat err = %v", err)
	}
}

func TestCache_FiltersStartedRacesUnlessForTomorrow(t *testing.T) {
	now := time.Date(2026, 6, 10, 14, 0, 0, 0, time.Local)
	races := []models.MatchedRace{matched("Later", "17:00"), matched("Started", "13:00"), matched("Bad", "TBA"), matched("Soon", "14:30")}
	m := &countingMatcher{races: races}
	c := newTestCache(t, m, now)

	got, err := c.LoadOrCreate(context.Background(), false)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if len(got) != 2 || got[0]["A"].RaceName != "Soon" || got[1]["A"].RaceName != "Later" {
		t.Errorf("upcoming = %v, want Soon then Later", got)
	}

	all, err := c.LoadOrCreate(context.Background(), true)
	if err != nil {
		t.Fatalf("LoadOrCreate(forTomorrow): %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("for tomorrow returned %d races, want 4", len(all))
	}
	if all[3]["A"].RaceName != "Bad" {
		t.Errorf("unparseable time should sort last, got %q", all[3]["A"].RaceName)
	}
	if m.tomorrow != 0 {
		t.Errorf("for_tomorrow scraped tomorrow's listings %d times, want 0", m.tomorrow)
	}
}
