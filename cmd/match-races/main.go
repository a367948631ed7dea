// Command match-races scrapes every source once, matches races across them
// and rewrites the match cache the streaming service reads on startup.
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
	"github.com/Vodeneev/raceodds/internal/matching"
	pkgconfig "github.com/Vodeneev/raceodds/internal/pkg/config"
	"github.com/Vodeneev/raceodds/internal/pkg/httpfetch"
	"github.com/Vodeneev/raceodds/internal/pkg/logging"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
	"github.com/Vodeneev/raceodds/internal/scrapers"
)

func main() {
	if err := run(); err != nil {
		slog.Error("match-races failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/local.yaml"
	}
	configPath := flag.String("config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	timeout := flag.Duration("timeout", 10*time.Minute, "Give up matching after this long")
	forTomorrow := flag.Bool("tomorrow", false, "Scrape tomorrow's listings instead of today's")
	flag.Parse()

	appConfig, err := pkgconfig.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, logCloser, err := logging.SetupLogger(&appConfig.Logging, "match-races")
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	manager, err := browser.NewManager(appConfig.Browser, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer manager.Close()

	primary := models.Source(appConfig.Matching.PrimarySource)
	fetcher := httpfetch.NewClient(appConfig.Sources.Sportsbet.PageTimeout, appConfig.Browser.UserAgent)
	all := scrapers.Available(manager, fetcher, appConfig.Sources, logger)
	engine := matching.NewEngine(primary, appConfig.Matching.BatchSize, logger, scrapers.Sources(all, primary)...)
	cache := matching.NewCache(appConfig.Matching.CachePath, engine, primary, logger)

	start := time.Now()
	races, err := cache.Refresh(ctx, *forTomorrow)
	if err != nil {
		return err
	}

	for _, race := range races {
		m, _ := race.Primary(primary)
		logger.Info("Matched race", "race", m.RaceKey(), "time", m.RaceTime, "sources", len(race))
	}
	logger.Info("Match cache written", "path", appConfig.Matching.CachePath, "races", len(races), "duration", time.Since(start))
	return nil
}
