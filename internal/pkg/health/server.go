// Package health serves the read-only HTTP interface of a running service.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Vodeneev/raceodds/internal/pkg/health/handlers"
)

// NewMux registers every endpoint on a fresh mux.
func NewMux(h *handlers.Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/ping", handlers.HandlePing)
	mux.HandleFunc("/health", h.HandleHealth)

	// Metrics endpoint
	mux.HandleFunc("/metrics", h.HandleMetrics)

	// Odds endpoints
	mux.HandleFunc("/odds", h.HandleOdds)
	mux.HandleFunc("/races", h.HandleRaces)

	return mux
}

// Run starts the server in the background and shuts it down when ctx is done.
func Run(ctx context.Context, addr string, service string, h *handlers.Handlers, readHeaderTimeout time.Duration) error {
	if readHeaderTimeout <= 0 {
		return fmt.Errorf("read_header_timeout must be specified in config")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(h),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("Health server listening", "service", service, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server error", "service", service, "error", err)
		}
	}()
	return nil
}

func AddrFor(port int) (string, error) {
	if port <= 0 {
		return "", fmt.Errorf("port must be greater than 0, got %d", port)
	}
	return fmt.Sprintf(":%d", port), nil
}
