package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daylinehq/dayline/internal/models"
)

func TestFlashStore_TakeIsReadOnce(t *testing.T) {
	store, _ := newTestCache(t)
	flashes := NewFlashStore(store, time.Minute)
	ctx := context.Background()

	require.NoError(t, flashes.Set(ctx, "sess-1", FlashLogoutReason, models.LogoutReasonSuperseded))

	value, ok, err := flashes.Take(ctx, "sess-1", FlashLogoutReason)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.LogoutReasonSuperseded, value)

	_, ok, err = flashes.Take(ctx, "sess-1", FlashLogoutReason)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlashStore_ScopedBySession(t *testing.T) {
	store, _ := newTestCache(t)
	flashes := NewFlashStore(store, time.Minute)
	ctx := context.Background()

	require.NoError(t, flashes.Set(ctx, "sess-1", FlashLogoutReason, "reason"))

	_, ok, err := flashes.Take(ctx, "sess-2", FlashLogoutReason)
	require.NoError(t, err)
	assert.False(t, ok)
}
