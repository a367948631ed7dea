// Package coordinator starts one streaming session per (race, source),
// enforces the initialization barrier and keeps the odds store fresh.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Vodeneev/raceodds/internal/oddsstore"
	"github.com/Vodeneev/raceodds/internal/pkg/models"
	"github.com/Vodeneev/raceodds/internal/pkg/performance"
	"github.com/Vodeneev/raceodds/internal/session"
)

// DriverFactory creates the driver for one race on one source.
type DriverFactory func(race models.RaceMetadata) (session.Driver, error)

// SourceSettings configures the sessions of one source.
type SourceSettings struct {
	NewDriver   DriverFactory
	Interval    time.Duration
	InitTimeout time.Duration
}

// Notifier receives operator alerts. Implementations must not block.
type Notifier interface {
	Notify(text string)
}

type Options struct {
	Primary       models.Source
	Sources       map[models.Source]SourceSettings
	TickInterval  time.Duration
	RecoveryDelay time.Duration
	Sinks         []Sink
	SinkTimeout   time.Duration // bound on one Sink.Publish call
	Notifier      Notifier
	Logger        *slog.Logger
	Tracker       *performance.Tracker
}

// SessionStatus is a read-only view of one session for health reporting.
type SessionStatus struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type Coordinator struct {
	races []models.MatchedRace
	store *oddsstore.Store
	opts  Options

	logger  *slog.Logger
	tracker *performance.Tracker

	mu       sync.RWMutex
	sessions []*session.Session
}

func New(races []models.MatchedRace, store *oddsstore.Store, opts Options) *Coordinator {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.RecoveryDelay <= 0 {
		opts.RecoveryDelay = 5 * time.Second
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = DefaultSinkTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracker == nil {
		opts.Tracker = performance.GetTracker()
	}
	return &Coordinator{
		races:   races,
		store:   store,
		opts:    opts,
		logger:  opts.Logger.With("component", "coordinator"),
		tracker: opts.Tracker,
	}
}

// Races returns the matched races being streamed.
func (c *Coordinator) Races() []models.MatchedRace {
	return c.races
}

// Status reports every session's state, sorted by id.
func (c *Coordinator) Status() []SessionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]SessionStatus, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, SessionStatus{ID: s.ID(), State: s.State().String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Run initializes every session, then streams and aggregates until ctx is
// cancelled. If any session fails to initialize, all sessions are cleaned up
// and the error is returned. Cancellation returns nil.
func (c *Coordinator) Run(ctx context.Context) error {
	groups, err := c.buildSessions()
	if err != nil {
		c.cleanup()
		c.notify(fmt.Sprintf("raceodds aborted: %v", err))
		return err
	}
	if len(groups) == 0 {
		c.logger.Warn("No matched races to stream")
	}

	c.logger.Info("Initializing sessions", "races", len(groups), "sessions", len(c.snapshotSessions()))
	start := time.Now()
	if err := c.initializeAll(ctx); err != nil {
		c.cleanup()
		if ctx.Err() != nil {
			return nil
		}
		c.notify(fmt.Sprintf("raceodds aborted: %v", err))
		return fmt.Errorf("initialize sessions: %w", err)
	}
	c.logger.Info("All sessions initialized", "duration", time.Since(start))

	agg := NewAggregator(groups, c.opts.Primary, c.store, c.opts.Sinks, c.opts.Logger, c.tracker)
	agg.sinkTimeout = c.opts.SinkTimeout

	var wg sync.WaitGroup
	for _, s := range c.snapshotSessions() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.streamLoop(ctx, s)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		agg.Run(ctx, c.opts.TickInterval)
	}()

	<-ctx.Done()
	wg.Wait()
	c.cleanup()
	c.logger.Info("Coordinator stopped")
	return nil
}

func (c *Coordinator) buildSessions() ([]RaceSessions, error) {
	groups := make([]RaceSessions, 0, len(c.races))
	for _, race := range c.races {
		sources := make([]string, 0, len(race))
		for s := range race {
			sources = append(sources, string(s))
		}
		sort.Strings(sources)

		group := RaceSessions{Race: race}
		for _, name := range sources {
			source := models.Source(name)
			meta := race[source]
			meta.Source = source

			settings, ok := c.opts.Sources[source]
			if !ok || settings.NewDriver == nil {
				return nil, fmt.Errorf("no driver configured for source %q", source)
			}
			driver, err := settings.NewDriver(meta)
			if err != nil {
				return nil, fmt.Errorf("create %s driver for %s: %w", source, meta.RaceKey(), err)
			}

			s := session.New(meta, driver, session.Options{
				InitTimeout: settings.InitTimeout,
				Policy:      session.FixedDelay(settings.Interval),
				Logger:      c.opts.Logger,
				Tracker:     c.tracker,
			})
			c.mu.Lock()
			c.sessions = append(c.sessions, s)
			c.mu.Unlock()
			group.Sessions = append(group.Sessions, s)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// initializeAll is the barrier: every session initializes concurrently and
// the first failure cancels the rest.
func (c *Coordinator) initializeAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range c.snapshotSessions() {
		g.Go(func() error {
			if err := s.Initialize(gctx); err != nil {
				return fmt.Errorf("%s: %w", s.ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// streamLoop keeps one session streaming, retrying after fatal failures.
func (c *Coordinator) streamLoop(ctx context.Context, s *session.Session) {
	interval := c.opts.Sources[s.Source()].Interval
	logger := c.logger.With("session", s.ID())

	for {
		err := s.Stream(ctx, interval)
		if ctx.Err() != nil || errors.Is(err, models.ErrSessionClosed) {
			return
		}

		if errors.Is(err, models.ErrFatalSessionFailure) {
			logger.Error("Session failed, retrying after delay", "error", err, "delay", c.opts.RecoveryDelay)
			c.notify(fmt.Sprintf("Session %s failed: %v", s.ID(), err))
		} else {
			logger.Warn("Stream stopped unexpectedly", "error", err)
		}

		timer := time.NewTimer(c.opts.RecoveryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Coordinator) snapshotSessions() []*session.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*session.Session(nil), c.sessions...)
}

// cleanup closes every created session. It never fails.
func (c *Coordinator) cleanup() {
	for _, s := range c.snapshotSessions() {
		s.Cleanup()
	}
}

func (c *Coordinator) notify(text string) {
	if c.opts.Notifier != nil {
		c.opts.Notifier.Notify(text)
	}
}
