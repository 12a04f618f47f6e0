package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daylinehq/dayline/internal/cache"
	"github.com/daylinehq/dayline/internal/models"
	pkgauth "github.com/daylinehq/dayline/pkg/auth"
	pkglogger "github.com/daylinehq/dayline/pkg/logger"
)

const resetCodeLength = 6

// PasswordAccountStore is the account access the reset flow needs.
type PasswordAccountStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// PasswordResetService runs the code-gated, session-scoped password
// change. State never touches the account row until the final update.
type PasswordResetService struct {
	accounts PasswordAccountStore
	store    cache.KeyValueStore
	limiter  *AttemptLimiter
	email    EmailService
	logger   *slog.Logger
	stateTTL time.Duration
	cooldown time.Duration
}

func NewPasswordResetService(
	accounts PasswordAccountStore,
	store cache.KeyValueStore,
	limiter *AttemptLimiter,
	email EmailService,
	logger *slog.Logger,
	stateTTL time.Duration,
	cooldown time.Duration,
) *PasswordResetService {
	return &PasswordResetService{
		accounts: accounts,
		store:    store,
		limiter:  limiter,
		email:    email,
		logger:   logger,
		stateTTL: stateTTL,
		cooldown: cooldown,
	}
}

func resetStateKey(sessionID string) string {
	return "auth:reset:state:" + sessionID
}

func resetCooldownKey(sessionID string) string {
	return "auth:reset:cooldown:" + sessionID
}

// RequestCode starts a reset for the caller's session. Social-only
// accounts are rejected outright, locked accounts must unlock first,
// and re-issuance within the cooldown is refused with the remaining
// wait.
func (s *PasswordResetService) RequestCode(ctx context.Context, sessionID, email string) (time.Duration, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Respond like a successful issuance so the reset channel
			// does not leak account existence.
			s.logger.Info("reset code requested for unknown email")
			return s.cooldown, nil
		}
		return 0, fmt.Errorf("failed to resolve account: %w", err)
	}

	if account.IsSocialOnly() {
		return 0, models.ErrSocialAccountRestricted
	}

	locked, err := s.limiter.IsLocked(ctx, account.ID)
	if err != nil {
		return 0, err
	}
	if locked {
		return 0, models.ErrAccountLocked
	}

	if remaining, err := s.store.TTL(ctx, resetCooldownKey(sessionID)); err == nil {
		return remaining, models.ErrResendCooldownActive
	} else if !errors.Is(err, cache.ErrMiss) {
		return 0, fmt.Errorf("failed to check resend cooldown: %w", err)
	}

	code, err := pkgauth.GenerateNumericCode(resetCodeLength)
	if err != nil {
		return 0, err
	}

	state := models.PasswordResetState{Email: account.Email, Code: code, Verified: false}
	payload, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("failed to encode reset state: %w", err)
	}

	if err := s.store.SetWithTTL(ctx, resetStateKey(sessionID), string(payload), s.stateTTL); err != nil {
		return 0, fmt.Errorf("failed to store reset state: %w", err)
	}
	if err := s.store.SetWithTTL(ctx, resetCooldownKey(sessionID), "1", s.cooldown); err != nil {
		return 0, fmt.Errorf("failed to store resend cooldown: %w", err)
	}

	go func(email, code string) {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := s.email.SendPasswordResetCode(sendCtx, email, code); err != nil {
			s.logger.Error("failed to dispatch reset code email",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.Any("error", err))
		}
	}(account.Email, code)

	s.logger.Info("reset code issued", slog.String("account_id", account.ID))
	return s.cooldown, nil
}

// VerifyCode compares a presented code against the session's reset
// state and marks it verified on a match. A mismatch is a no-op: the
// state is neither cleared nor counted, retries run against the same
// code until its TTL elapses.
func (s *PasswordResetService) VerifyCode(ctx context.Context, sessionID, code string) error {
	state, err := s.loadState(ctx, sessionID)
	if err != nil {
		return err
	}

	if code == "" || code != state.Code {
		return models.ErrCodeInvalidOrExpired
	}

	state.Verified = true

	remaining, err := s.store.TTL(ctx, resetStateKey(sessionID))
	if err != nil {
		// The state expired between load and write-back; the caller
		// re-requests a code.
		if errors.Is(err, cache.ErrMiss) {
			return models.ErrCodeInvalidOrExpired
		}
		return fmt.Errorf("failed to read reset state ttl: %w", err)
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode reset state: %w", err)
	}
	if err := s.store.SetWithTTL(ctx, resetStateKey(sessionID), string(payload), remaining); err != nil {
		return fmt.Errorf("failed to store reset state: %w", err)
	}

	return nil
}

// Reset performs the password change. It requires a verified state whose
// email matches, and the state is cleared unconditionally afterward:
// each issued code is good for at most one reset attempt.
func (s *PasswordResetService) Reset(ctx context.Context, sessionID, email, newPassword string) error {
	state, err := s.loadState(ctx, sessionID)
	if err != nil {
		return err
	}

	if !state.Verified || state.Email != email {
		return models.ErrCodeInvalidOrExpired
	}

	defer func() {
		if err := s.store.Delete(ctx, resetStateKey(sessionID)); err != nil {
			s.logger.Error("failed to clear reset state", slog.Any("error", err))
		}
	}()

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return models.ErrInternalServer
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrCodeInvalidOrExpired
		}
		return fmt.Errorf("failed to resolve account: %w", err)
	}

	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("password reset completed", slog.String("account_id", account.ID))
	return nil
}

// Cancel clears the session's reset state.
func (s *PasswordResetService) Cancel(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, resetStateKey(sessionID)); err != nil {
		return fmt.Errorf("failed to clear reset state: %w", err)
	}
	return nil
}

func (s *PasswordResetService) loadState(ctx context.Context, sessionID string) (*models.PasswordResetState, error) {
	stored, err := s.store.Get(ctx, resetStateKey(sessionID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, models.ErrCodeInvalidOrExpired
		}
		return nil, fmt.Errorf("failed to load reset state: %w", err)
	}

	var state models.PasswordResetState
	if err := json.Unmarshal([]byte(stored), &state); err != nil {
		return nil, fmt.Errorf("failed to decode reset state: %w", err)
	}

	return &state, nil
}
