// Package browser owns the shared headless Chrome process used by the scrapers.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/raceodds/internal/pkg/config"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

// Manager owns one Chrome process. Each page is a separate tab.
type Manager struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	dataDir       string
	logger        *slog.Logger

	closeOnce sync.Once
}

func NewManager(cfg config.BrowserConfig, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "browser")

	dataDir, err := os.MkdirTemp("", "raceodds_chrome_")
	if err != nil {
		return nil, fmt.Errorf("create chrome temp dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.IsHeadless()),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.UserDataDir(dataDir),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...any) {
		logger.Debug("chromedp", "message", fmt.Sprintf(format, v...))
	}))

	// The first Run on the root context starts Chrome and binds it to browserCtx.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		os.RemoveAll(dataDir)
		return nil, fmt.Errorf("%w: start chrome: %w", models.ErrResourceUnavailable, err)
	}

	logger.Info("Browser started", "headless", cfg.IsHeadless(), "window", fmt.Sprintf("%dx%d", cfg.WindowWidth, cfg.WindowHeight))
	return &Manager{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		dataDir:       dataDir,
		logger:        logger,
	}, nil
}

// NewPage opens a new tab. The caller must Close it.
func (m *Manager) NewPage() (Page, error) {
	tabCtx, cancel := chromedp.NewContext(m.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: open tab: %w", models.ErrResourceUnavailable, err)
	}
	return &tab{ctx: tabCtx, cancel: cancel}, nil
}

// Close kills Chrome and removes its profile directory. Safe to call repeatedly.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.browserCancel()
		m.allocCancel()
		if err := os.RemoveAll(m.dataDir); err != nil {
			m.logger.Warn("Failed to remove chrome profile", "dir", m.dataDir, "error", err)
		}
		m.logger.Info("Browser closed")
	})
	return nil
}
