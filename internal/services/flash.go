package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daylinehq/dayline/internal/cache"
)

// Session-scoped flash keys surfaced on the next rendered login page.
const (
	FlashLogoutReason = "logout_reason"
	FlashAuthFeedback = "auth_feedback"
)

// FlashStore keeps read-once, session-scoped messages in the cache.
type FlashStore struct {
	store cache.KeyValueStore
	ttl   time.Duration
}

func NewFlashStore(store cache.KeyValueStore, ttl time.Duration) *FlashStore {
	return &FlashStore{store: store, ttl: ttl}
}

func flashKey(sessionID, name string) string {
	return "auth:flash:" + name + ":" + sessionID
}

func (f *FlashStore) Set(ctx context.Context, sessionID, name, value string) error {
	if err := f.store.SetWithTTL(ctx, flashKey(sessionID, name), value, f.ttl); err != nil {
		return fmt.Errorf("failed to set flash %s: %w", name, err)
	}
	return nil
}

// Take returns and consumes the flash value. A missing value is not an
// error; ok is false.
func (f *FlashStore) Take(ctx context.Context, sessionID, name string) (value string, ok bool, err error) {
	value, err = f.store.Get(ctx, flashKey(sessionID, name))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read flash %s: %w", name, err)
	}

	if err := f.store.Delete(ctx, flashKey(sessionID, name)); err != nil {
		return "", false, fmt.Errorf("failed to consume flash %s: %w", name, err)
	}

	return value, true, nil
}
