package storage

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes stale files from a Manager.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	maxAge   time.Duration
	backoff  time.Duration
	logger   *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithInterval sets the pause between successful cycles.
func WithInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = d }
}

// WithMaxAge sets the age beyond which files are removed.
func WithMaxAge(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.maxAge = d }
}

// WithBackoff sets the pause after a failed cycle.
func WithBackoff(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.backoff = d }
}

// WithSweeperLogger sets the logger.
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = l }
}

// NewSweeper returns a Sweeper with hourly cycles, a one hour max age and a
// one hour backoff unless overridden.
func NewSweeper(m *Manager, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		manager:  m,
		interval: time.Hour,
		maxAge:   time.Hour,
		backoff:  time.Hour,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps until ctx is cancelled. A failing cycle is logged and retried
// after the backoff; it never stops the loop.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		wait := s.interval
		removed, err := s.manager.Sweep(s.maxAge)
		if err != nil {
			s.logger.Error("sweep failed", "error", err, "retry_in", s.backoff)
			wait = s.backoff
		} else if removed > 0 {
			s.logger.Info("sweep removed stale files", "count", removed)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
