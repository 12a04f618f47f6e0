package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daylinehq/dayline/internal/models"
)

func TestSessionGuard_FlagsBeforeDeleting(t *testing.T) {
	store, _ := newTestCache(t)
	sessions := newMockSessionStore(
		&models.Session{ID: "sid-old-1", AccountID: "acct-1"},
		&models.Session{ID: "sid-old-2", AccountID: "acct-1"},
		&models.Session{ID: "sid-new", AccountID: "acct-1"},
	)
	guard := NewSessionGuard(sessions, store, 24*time.Hour, slog.Default())
	ctx := context.Background()

	require.NoError(t, guard.OnLogin(ctx, "acct-1", "sid-new"))

	// Both stale sessions are flagged and gone; the new one survives.
	for _, sid := range []string{"sid-old-1", "sid-old-2"} {
		_, err := store.Get(ctx, forcedLogoutKey(sid))
		assert.NoError(t, err, "flag for %s must exist", sid)

		_, err = sessions.GetByID(ctx, sid)
		assert.ErrorIs(t, err, models.ErrNotFound, "%s must be deleted", sid)
	}

	_, err := sessions.GetByID(ctx, "sid-new")
	assert.NoError(t, err)

	_, err = store.Get(ctx, forcedLogoutKey("sid-new"))
	assert.Error(t, err, "the new session must not be flagged")
}

func TestSessionGuard_NoOtherSessionsIsNoop(t *testing.T) {
	store, _ := newTestCache(t)
	sessions := newMockSessionStore(&models.Session{ID: "sid-new", AccountID: "acct-1"})
	guard := NewSessionGuard(sessions, store, 24*time.Hour, slog.Default())

	require.NoError(t, guard.OnLogin(context.Background(), "acct-1", "sid-new"))
	assert.Empty(t, sessions.deleted)
}

func TestSessionGuard_FlagExpires(t *testing.T) {
	store, mr := newTestCache(t)
	sessions := newMockSessionStore(
		&models.Session{ID: "sid-old", AccountID: "acct-1"},
	)
	guard := NewSessionGuard(sessions, store, 24*time.Hour, slog.Default())
	ctx := context.Background()

	require.NoError(t, guard.OnLogin(ctx, "acct-1", "sid-new"))

	mr.FastForward(25 * time.Hour)

	// After the flag TTL the stale session is just an expired session.
	_, err := store.Get(ctx, forcedLogoutKey("sid-old"))
	assert.Error(t, err)
}
