package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daylinehq/dayline/internal/cache"
	"github.com/daylinehq/dayline/internal/models"
)

// SessionStore is the narrow view of the session backend the guard
// needs. It only applies when sessions live in a queryable, deletable
// store; purely client-held tokens would make the guard a no-op.
type SessionStore interface {
	ListByAccount(ctx context.Context, accountID string) ([]*models.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

func forcedLogoutKey(sessionID string) string {
	return "auth:session:forced_logout:" + sessionID
}

// SessionGuard enforces a single active session per account. On a
// successful login every other session of the account is flagged, then
// deleted, so a later request bound to the stale session can still learn
// why it was terminated.
type SessionGuard struct {
	sessions SessionStore
	store    cache.KeyValueStore
	flagTTL  time.Duration
	logger   *slog.Logger
}

func NewSessionGuard(sessions SessionStore, store cache.KeyValueStore, flagTTL time.Duration, logger *slog.Logger) *SessionGuard {
	return &SessionGuard{
		sessions: sessions,
		store:    store,
		flagTTL:  flagTTL,
		logger:   logger,
	}
}

// OnLogin supersedes every other session owned by accountID. The flag is
// written before the row is deleted; a crash in between leaves a flagged
// but live session, which the detector terminates on its next request.
// After OnLogin at most one row per account remains. Sessions of other
// accounts are never touched.
func (g *SessionGuard) OnLogin(ctx context.Context, accountID, newSessionID string) error {
	sessions, err := g.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, session := range sessions {
		if session.ID == newSessionID {
			continue
		}

		if err := g.store.SetWithTTL(ctx, forcedLogoutKey(session.ID), "1", g.flagTTL); err != nil {
			return fmt.Errorf("failed to flag superseded session: %w", err)
		}
		if err := g.sessions.DeleteByID(ctx, session.ID); err != nil {
			return fmt.Errorf("failed to delete superseded session: %w", err)
		}

		g.logger.Info("session superseded",
			slog.String("account_id", accountID),
			slog.String("session_id", session.ID))
	}

	return nil
}
