package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vodeneev/raceodds/internal/browser"
	"github.com/Vodeneev/raceodds/internal/coordinator"
	"github.com/Vodeneev/raceodds/internal/matching"
	"github.com/Vodeneev/raceodds/internal/oddsstore"
	pkgconfig "github.com/Vodeneev/raceodds/internal/pkg/config"
	"github.com/Vodeneev/raceodds/internal/pkg/health"
	"github.com/Vodeneev/raceodds/internal/pkg/health/handlers"
	"github.com/Vodeneev/raceodds/internal/pkg/httpfetch"
	"github.com/Vodeneev/raceodds/internal/pkg/logging"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
	"github.com/Vodeneev/raceodds/internal/pkg/notify"
	"github.com/Vodeneev/raceodds/internal/pkg/performance"
	"github.com/Vodeneev/raceodds/internal/pkg/storage"
	"github.com/Vodeneev/raceodds/internal/scrapers"
)

const (
	defaultConfigPath = "configs/local.yaml"
	serviceName       = "raceodds"
)

type config struct {
	configPath string
	runFor     time.Duration
}

func main() {
	if err := run(); err != nil {
		slog.Error("raceodds failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()
	slog.Info("Loading config", "path", cfg.configPath)

	appConfig, err := pkgconfig.Load(cfg.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, logCloser, err := logging.SetupLogger(&appConfig.Logging, serviceName)
	if err != nil {
		slog.Warn("Failed to setup logging, continuing with default logger", "error", err)
		logger = slog.Default()
	} else {
		defer logCloser.Close()
	}

	ctx, cancel := createContext(cfg.runFor)
	defer cancel()
	setupSignalHandler(ctx, cancel)

	store := oddsstore.New()
	tracker := performance.GetTracker()
	defer tracker.PrintSummary()

	h := &handlers.Handlers{Store: store, Tracker: tracker}
	addr, err := health.AddrFor(appConfig.Health.Port)
	if err != nil {
		return err
	}
	if err := health.Run(ctx, addr, serviceName, h, appConfig.Health.ReadHeaderTimeout); err != nil {
		return err
	}

	manager, err := browser.NewManager(appConfig.Browser, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer manager.Close()

	fetcher := httpfetch.NewClient(appConfig.Sources.Sportsbet.PageTimeout, appConfig.Browser.UserAgent)
	all := scrapers.Available(manager, fetcher, appConfig.Sources, logger)
	primary := models.Source(appConfig.Matching.PrimarySource)

	races, err := matchRaces(ctx, appConfig, all, primary, logger)
	if err != nil {
		return err
	}
	if len(races) == 0 {
		logger.Info("No upcoming matched races, nothing to stream")
		return nil
	}

	sinks, closeSinks := buildSinks(appConfig, logger)
	defer closeSinks()

	opts := coordinator.Options{
		Primary:       primary,
		Sources:       scrapers.CoordinatorSources(all),
		TickInterval:  appConfig.Coordinator.TickInterval,
		RecoveryDelay: appConfig.Coordinator.RecoveryDelay,
		Sinks:         sinks,
		SinkTimeout:   appConfig.Coordinator.SinkTimeout,
		Logger:        logger,
		Tracker:       tracker,
	}
	if appConfig.Telegram.BotToken != "" {
		if n := notify.NewTelegramNotifier(appConfig.Telegram.BotToken, appConfig.Telegram.ChatID, logger); n != nil {
			defer n.Close()
			opts.Notifier = n
		}
	}

	coord := coordinator.New(races, store, opts)
	h.SetRuntime(coord)

	logger.Info("Streaming odds", "races", len(races), "primary", primary)
	if err := coord.Run(ctx); err != nil {
		return err
	}
	logger.Info("raceodds stopped gracefully")
	return nil
}

func parseFlags() config {
	var cfg config

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.DurationVar(&cfg.runFor, "run-for", 0, "Auto-stop after duration (e.g. 10s, 1m). 0 = run until SIGINT/SIGTERM")
	flag.Parse()
	return cfg
}

// matchRaces loads today's matched races from the cache or by scraping, and
// keeps at most matching.max_races of them.
func matchRaces(ctx context.Context, appConfig *pkgconfig.Config, all map[models.Source]scrapers.Scraper, primary models.Source, logger *slog.Logger) ([]models.MatchedRace, error) {
	engine := matching.NewEngine(primary, appConfig.Matching.BatchSize, logger, scrapers.Sources(all, primary)...)
	cache := matching.NewCache(appConfig.Matching.CachePath, engine, primary, logger)

	races, err := cache.LoadOrCreate(ctx, appConfig.Matching.ForTomorrow)
	if err != nil {
		return nil, fmt.Errorf("failed to match races: %w", err)
	}
	if limit := appConfig.Matching.MaxRaces; limit > 0 && len(races) > limit {
		logger.Info("Limiting streamed races", "matched", len(races), "max_races", limit)
		races = races[:limit]
	}
	return races, nil
}

// buildSinks connects the configured external stores. A store that cannot be
// reached is logged and skipped.
func buildSinks(appConfig *pkgconfig.Config, logger *slog.Logger) ([]coordinator.Sink, func()) {
	var (
		sinks   []coordinator.Sink
		closers []func() error
	)

	if appConfig.Postgres.DSN != "" {
		pg, err := storage.NewPostgresSink(&appConfig.Postgres)
		if err != nil {
			logger.Warn("PostgreSQL sink disabled", "error", err)
		} else {
			sinks = append(sinks, pg)
			closers = append(closers, pg.Close)
		}
	}
	if appConfig.Redis.Addr != "" {
		rs, err := storage.NewRedisSink(&appConfig.Redis)
		if err != nil {
			logger.Warn("Redis sink disabled", "error", err)
		} else {
			sinks = append(sinks, rs)
			closers = append(closers, rs.Close)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Debug("Closing sink failed", "error", err)
			}
		}
	}
}

func createContext(runFor time.Duration) (context.Context, context.CancelFunc) {
	if runFor > 0 {
		return context.WithTimeout(context.Background(), runFor)
	}
	return context.WithCancel(context.Background())
}

func setupSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal, stopping raceodds...", "signal", sig.String())
			cancel()
		case <-ctx.Done():
			signal.Stop(sigChan)
		}
	}()
}
