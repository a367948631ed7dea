package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Browser     BrowserConfig     `yaml:"browser"`
	Matching    MatchingConfig    `yaml:"matching"`
	Sources     SourcesConfig     `yaml:"sources"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Health      HealthConfig      `yaml:"health"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Telegram    TelegramConfig    `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // optional JSON log file, always written at debug level
}

type BrowserConfig struct {
	Headless     *bool  `yaml:"headless"` // nil = headless
	UserAgent    string `yaml:"user_agent"`
	ExecPath     string `yaml:"exec_path"` // empty = let chromedp find Chrome
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
}

// IsHeadless reports whether Chrome runs without a window. An omitted
// headless key means true.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

type MatchingConfig struct {
	CachePath     string `yaml:"cache_path"`
	BatchSize     int    `yaml:"batch_size"`
	ForTomorrow   bool   `yaml:"for_tomorrow"`
	PrimarySource string `yaml:"primary_source"` // source whose race_time orders races and whose location keys the odds store
	MaxRaces      int    `yaml:"max_races"`      // 0 = all matched races
}

type SourcesConfig struct {
	Betfair   SourceConfig `yaml:"betfair"`
	Sportsbet SourceConfig `yaml:"sportsbet"`
}

type SourceConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Interval    time.Duration `yaml:"interval"`     // polling interval of each streaming session
	InitTimeout time.Duration `yaml:"init_timeout"` // bound on opening a race page and waiting for odds
	PageTimeout time.Duration `yaml:"page_timeout"` // bound on listing/metadata page loads
}

type CoordinatorConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	RecoveryDelay time.Duration `yaml:"recovery_delay"` // wait before restarting a session that failed fatally
	SinkTimeout   time.Duration `yaml:"sink_timeout"`   // bound on one sink publish
}

type HealthConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

const (
	DefaultBetfairURL   = "https://www.betfair.com.au/exchange/plus/horse-racing"
	DefaultSportsbetURL = "https://www.sportsbet.com.au/racing-schedule"
	DefaultUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
)

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplyDefaults fills every zero value with the value the service runs with
// when the key is omitted.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Browser.Headless == nil {
		headless := true
		c.Browser.Headless = &headless
	}
	if c.Browser.UserAgent == "" {
		c.Browser.UserAgent = DefaultUserAgent
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		c.Browser.WindowWidth, c.Browser.WindowHeight = 1920, 1080
	}
	if c.Matching.CachePath == "" {
		c.Matching.CachePath = "matched_races.json"
	}
	if c.Matching.BatchSize <= 0 {
		c.Matching.BatchSize = 10
	}
	if c.Matching.PrimarySource == "" {
		c.Matching.PrimarySource = "betfair"
	}
	c.Sources.Betfair.applyDefaults(DefaultBetfairURL)
	c.Sources.Sportsbet.applyDefaults(DefaultSportsbetURL)
	if c.Coordinator.TickInterval <= 0 {
		c.Coordinator.TickInterval = time.Second
	}
	if c.Coordinator.RecoveryDelay <= 0 {
		c.Coordinator.RecoveryDelay = 5 * time.Second
	}
	if c.Coordinator.SinkTimeout <= 0 {
		c.Coordinator.SinkTimeout = 10 * time.Second
	}
	if c.Health.ReadHeaderTimeout <= 0 {
		c.Health.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = time.Minute
	}
}

func (s *SourceConfig) applyDefaults(baseURL string) {
	if s.BaseURL == "" {
		s.BaseURL = baseURL
	}
	if s.Interval <= 0 {
		s.Interval = 5 * time.Second
	}
	if s.InitTimeout <= 0 {
		s.InitTimeout = 60 * time.Second
	}
	if s.PageTimeout <= 0 {
		s.PageTimeout = 30 * time.Second
	}
}

func (c *Config) Validate() error {
	switch c.Matching.PrimarySource {
	case "betfair", "sportsbet":
	default:
		return fmt.Errorf("matching.primary_source must be betfair or sportsbet, got %q", c.Matching.PrimarySource)
	}
	if c.Matching.MaxRaces < 0 {
		return fmt.Errorf("matching.max_races must not be negative")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	return nil
}
