package background

import (
	"context"
	"log/slog"
	"time"
)

// IdleSessionStore deletes session rows idle since a cutoff.
type IdleSessionStore interface {
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionSweeper periodically removes idle session rows. This is the
// session store's own garbage collection; supersession and forced
// logout are handled at request time.
type SessionSweeper struct {
	sessions IdleSessionStore
	logger   *slog.Logger
	idleTTL  time.Duration
	interval time.Duration
	stopCh   chan struct{}
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(
	sessions IdleSessionStore,
	logger *slog.Logger,
	idleTTL time.Duration,
	interval time.Duration,
) *SessionSweeper {
	return &SessionSweeper{
		sessions: sessions,
		logger:   logger,
		idleTTL:  idleTTL,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (s *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopCh:
			s.logger.Info("session sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("session sweeper context cancelled")
			return
		}
	}
}

func (s *SessionSweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.idleTTL)
	rowsDeleted, err := s.sessions.DeleteIdleBefore(sweepCtx, cutoff)
	if err != nil {
		s.logger.Error("failed to sweep idle sessions", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		s.logger.Info("idle session sweep completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the sweeper to stop
func (s *SessionSweeper) Stop() {
	close(s.stopCh)
}
