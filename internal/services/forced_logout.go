package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/daylinehq/dayline/internal/cache"
	"github.com/daylinehq/dayline/internal/models"
)

// SessionLookup reads session rows for the detector.
type SessionLookup interface {
	GetByID(ctx context.Context, id string) (*models.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

// ForcedLogoutDetector runs at the start of request handling for any
// request carrying a session id and terminates sessions a newer login
// superseded.
type ForcedLogoutDetector struct {
	sessions SessionLookup
	store    cache.KeyValueStore
	logger   *slog.Logger
}

func NewForcedLogoutDetector(sessions SessionLookup, store cache.KeyValueStore, logger *slog.Logger) *ForcedLogoutDetector {
	return &ForcedLogoutDetector{
		sessions: sessions,
		store:    store,
		logger:   logger,
	}
}

// Check inspects the session id. When a forced-logout flag is present it
// is consumed (read-once), any leftover row is dropped, and
// ErrSessionSuperseded is returned alongside the user-visible reason.
// The guard normally deletes the row first, so the flag is honored
// whether or not the row still exists.
func (d *ForcedLogoutDetector) Check(ctx context.Context, sessionID string) (string, error) {
	_, err := d.store.Get(ctx, forcedLogoutKey(sessionID))
	if err == nil {
		if err := d.store.Delete(ctx, forcedLogoutKey(sessionID)); err != nil {
			return "", fmt.Errorf("failed to consume forced-logout flag: %w", err)
		}
		if err := d.sessions.DeleteByID(ctx, sessionID); err != nil {
			return "", err
		}

		d.logger.Info("superseded session terminated", slog.String("session_id", sessionID))
		return models.LogoutReasonSuperseded, models.ErrSessionSuperseded
	}
	if !errors.Is(err, cache.ErrMiss) {
		return "", fmt.Errorf("failed to read forced-logout flag: %w", err)
	}

	return "", nil
}
