// Package session runs one persistent scraping session per (source, race).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vodeneev/raceodds/internal/pkg/models"
	"github.com/Vodeneev/raceodds/internal/pkg/performance"
)

// Driver owns the long-lived connection to one race page on one source.
// Open may be called again after Close.
type Driver interface {
	// Open connects and blocks until the odds region has rendered.
	Open(ctx context.Context) error
	// RefreshAndExtract refreshes the page and returns a complete snapshot.
	RefreshAndExtract(ctx context.Context) (models.OddsSnapshot, error)
	// Close releases the connection. Safe to call repeatedly.
	Close() error
}

// State is the lifecycle position of a session.
type State int32

const (
	StateUninitialized State = iota
	StateActive
	StateRecovering
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateRecovering:
		return "recovering"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a session. Zero values fall back to defaults.
type Options struct {
	InitTimeout time.Duration
	Policy      RetryPolicy
	Logger      *slog.Logger
	Tracker     *performance.Tracker
}

type Session struct {
	source models.Source
	race   models.RaceMetadata
	driver Driver

	initTimeout time.Duration
	policy      RetryPolicy
	logger      *slog.Logger
	tracker     *performance.Tracker

	mu    sync.Mutex // serializes lifecycle transitions
	state atomic.Int32

	latest atomic.Pointer[models.OddsSnapshot]
}

func New(race models.RaceMetadata, driver Driver, opts Options) *Session {
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = 60 * time.Second
	}
	if opts.Policy == nil {
		opts.Policy = FixedDelay(5 * time.Second)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracker == nil {
		opts.Tracker = performance.GetTracker()
	}
	return &Session{
		source:      race.Source,
		race:        race,
		driver:      driver,
		initTimeout: opts.InitTimeout,
		policy:      opts.Policy,
		logger:      opts.Logger.With("source", race.Source, "race", race.RaceKey()),
		tracker:     opts.Tracker,
	}
}

// ID names the session in logs and metrics.
func (s *Session) ID() string {
	return string(s.source) + "/" + s.race.RaceKey()
}

func (s *Session) Source() models.Source     { return s.source }
func (s *Session) Race() models.RaceMetadata { return s.race }
func (s *Session) State() State              { return State(s.state.Load()) }

// Latest returns the most recent complete snapshot, or nil before the first
// successful cycle. The returned map must not be modified.
func (s *Session) Latest() models.OddsSnapshot {
	if p := s.latest.Load(); p != nil {
		return *p
	}
	return nil
}

// Initialize opens the connection. It is a no-op on an active session.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializeLocked(ctx)
}

func (s *Session) initializeLocked(ctx context.Context) error {
	switch s.State() {
	case StateActive:
		return nil
	case StateClosed:
		return models.ErrSessionClosed
	}

	initCtx, cancel := context.WithTimeout(ctx, s.initTimeout)
	defer cancel()

	start := time.Now()
	if err := s.driver.Open(initCtx); err != nil {
		_ = s.driver.Close()
		if errors.Is(err, models.ErrResourceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: open %s: %w", models.ErrResourceUnavailable, s.race.URL, err)
	}
	s.state.Store(int32(StateActive))
	s.logger.Info("Session initialized", "duration", time.Since(start))
	return nil
}

// Stream polls the driver every interval until ctx is cancelled. A failed
// cycle tears the connection down and reinitializes once; if that fails
// Stream returns an error wrapping models.ErrFatalSessionFailure and leaves
// the session in StateRecovering, ready for another Stream call.
func (s *Session) Stream(ctx context.Context, interval time.Duration) error {
	if err := s.Initialize(ctx); err != nil {
		if errors.Is(err, models.ErrSessionClosed) || ctx.Err() != nil {
			return err
		}
		s.teardown(StateRecovering)
		s.tracker.RecordFatal(s.ID())
		return fmt.Errorf("%w: %s: %w", models.ErrFatalSessionFailure, s.ID(), err)
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.cycle(ctx)
		if err == nil {
			attempt = 0
			if err := sleep(ctx, interval); err != nil {
				return err
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		s.tracker.RecordFailure(s.ID(), err)
		s.logger.Warn("Odds cycle failed, reinitializing session", "error", err, "attempt", attempt)

		if err := s.recover(ctx, attempt); err != nil {
			if errors.Is(err, models.ErrSessionClosed) || ctx.Err() != nil {
				return err
			}
			s.tracker.RecordFatal(s.ID())
			s.logger.Error("Session reinitialization failed", "error", err)
			return fmt.Errorf("%w: %s: %w", models.ErrFatalSessionFailure, s.ID(), err)
		}
		s.tracker.RecordRecovery(s.ID())
	}
}

// cycle runs one refresh-and-extract and publishes the snapshot.
func (s *Session) cycle(ctx context.Context) error {
	start := time.Now()
	snapshot, err := s.driver.RefreshAndExtract(ctx)
	if err != nil {
		if errors.Is(err, models.ErrExtractionFailure) || errors.Is(err, models.ErrResourceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", models.ErrExtractionFailure, err)
	}
	if snapshot == nil {
		snapshot = models.OddsSnapshot{}
	}
	s.latest.Store(&snapshot)
	s.tracker.RecordCycle(s.ID(), len(snapshot), time.Since(start))
	s.logger.Debug("Odds cycle completed", "runners", len(snapshot), "duration", time.Since(start))
	return nil
}

// recover tears the connection down, waits out the retry policy and opens it again.
func (s *Session) recover(ctx context.Context, attempt int) error {
	s.teardown(StateRecovering)

	if err := sleep(ctx, s.policy.Delay(attempt)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializeLocked(ctx)
}

func (s *Session) teardown(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return
	}
	if err := s.driver.Close(); err != nil {
		s.logger.Debug("Closing driver failed", "error", err)
	}
	s.state.Store(int32(next))
}

// Cleanup releases the connection and closes the session for good. It is
// idempotent and safe to call from error handlers.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		return
	}
	if err := s.driver.Close(); err != nil {
		s.logger.Debug("Closing driver failed", "error", err)
	}
	s.state.Store(int32(StateClosed))
	s.logger.Info("Session closed")
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
