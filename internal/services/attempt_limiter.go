package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/daylinehq/dayline/internal/cache"
)

// AttemptLimiter tracks failed logins per account and derives the lock
// state. Counters live in the cache under a derived, non-reversible key;
// the window starts when the counter is created and expiry resets the
// count implicitly.
type AttemptLimiter struct {
	store     cache.KeyValueStore
	threshold int
	window    time.Duration
	logger    *slog.Logger
}

func NewAttemptLimiter(store cache.KeyValueStore, threshold int, window time.Duration, logger *slog.Logger) *AttemptLimiter {
	return &AttemptLimiter{
		store:     store,
		threshold: threshold,
		window:    window,
		logger:    logger,
	}
}

// accountKey derives the cache key for an account. Keys are a one-way
// hash of the account id so cache entries are never keyed off raw
// user-supplied input.
func accountKey(accountID string) string {
	sum := sha256.Sum256([]byte("uid:" + accountID))
	return "auth:login:account:" + hex.EncodeToString(sum[:])
}

// RecordFailure increments the counter, creating it with the lock window
// when absent, and returns the new count. Two concurrent failures may
// both land on the threshold; the lock is conservative, never
// permissive.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, accountID string) (int, error) {
	count, err := l.store.Increment(ctx, accountKey(accountID), l.window)
	if err != nil {
		return 0, fmt.Errorf("failed to record login failure: %w", err)
	}

	if int(count) >= l.threshold {
		l.logger.Warn("account reached lock threshold",
			slog.String("account_id", accountID),
			slog.Int64("failed_attempts", count))
	}

	return int(count), nil
}

// IsLocked reports whether the account's failure count within the
// current window has reached the threshold.
func (l *AttemptLimiter) IsLocked(ctx context.Context, accountID string) (bool, error) {
	value, err := l.store.Get(ctx, accountKey(accountID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read attempt counter: %w", err)
	}

	count, err := strconv.Atoi(value)
	if err != nil {
		// A corrupt counter fails safe: treat as locked until it expires.
		l.logger.Error("corrupt attempt counter",
			slog.String("account_id", accountID),
			slog.String("value", value))
		return true, nil
	}

	return count >= l.threshold, nil
}

// Clear deletes the counter. Called on successful login and on
// successful unlock-code verification.
func (l *AttemptLimiter) Clear(ctx context.Context, accountID string) error {
	if err := l.store.Delete(ctx, accountKey(accountID)); err != nil {
		return fmt.Errorf("failed to clear attempt counter: %w", err)
	}
	return nil
}
