package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "health:\n  port: 8080\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Health.Port != 8080 {
		t.Errorf("health.port = %d, want 8080", cfg.Health.Port)
	}
	if cfg.Matching.BatchSize != 10 {
		t.Errorf("matching.batch_size = %d, want 10", cfg.Matching.BatchSize)
	}
	if cfg.Matching.PrimarySource != "betfair" {
		t.Errorf("matching.primary_source = %q, want betfair", cfg.Matching.PrimarySource)
	}
	if cfg.Coordinator.TickInterval != time.Second {
		t.Errorf("coordinator.tick_interval = %v, want 1s", cfg.Coordinator.TickInterval)
	}
	if cfg.Sources.Betfair.BaseURL != DefaultBetfairURL || cfg.Sources.Sportsbet.BaseURL != DefaultSportsbetURL {
		t.Errorf("default base URLs not applied: %q %q", cfg.Sources.Betfair.BaseURL, cfg.Sources.Sportsbet.BaseURL)
	}
	if cfg.Sources.Sportsbet.Interval != 5*time.Second {
		t.Errorf("sportsbet interval = %v, want 5s", cfg.Sources.Sportsbet.Interval)
	}
	if cfg.Browser.Headless == nil || !cfg.Browser.IsHeadless() {
		t.Errorf("browser.headless = %v, want true when omitted", cfg.Browser.Headless)
	}
}

func TestLoad_HeadlessCanBeDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "browser:\n  headless: false\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Browser.IsHeadless() {
		t.Error("browser.headless: false was overridden")
	}
	if !(BrowserConfig{}).IsHeadless() {
		t.Error("zero BrowserConfig should run headless")
	}
}

func TestLoad_Overrides(t *testing.T) {
	body := `
matching:
  cache_path: /tmp/races.json
  primary_source: sportsbet
  max_races: 5
sources:
  betfair:
    interval: 2s
    init_timeout: 45s
coordinator:
  tick_interval: 500ms
redis:
  addr: localhost:6379
  ttl: 30s
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Matching.CachePath != "/tmp/races.json" || cfg.Matching.MaxRaces != 5 {
		t.Errorf("matching = %+v", cfg.Matching)
	}
	if cfg.Sources.Betfair.Interval != 2*time.Second || cfg.Sources.Betfair.InitTimeout != 45*time.Second {
		t.Errorf("betfair = %+v", cfg.Sources.Betfair)
	}
	if cfg.Coordinator.TickInterval != 500*time.Millisecond {
		t.Errorf("tick_interval = %v", cfg.Coordinator.TickInterval)
	}
	if cfg.Redis.TTL != 30*time.Second {
		t.Errorf("redis.ttl = %v", cfg.Redis.TTL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown primary", "matching:\n  primary_source: tab\n", "primary_source"},
		{"negative max races", "matching:\n  max_races: -1\n", "max_races"},
		{"telegram without chat", "telegram:\n  bot_token: abc\n", "chat_id"},
		{"bad yaml", "matching: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
