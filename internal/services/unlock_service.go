package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/daylinehq/dayline/internal/cache"
	"github.com/daylinehq/dayline/internal/models"
	pkgauth "github.com/daylinehq/dayline/pkg/auth"
	pkglogger "github.com/daylinehq/dayline/pkg/logger"
)

const unlockCodeLength = 6

// Unlock actions requested by the client after a successful
// verification.
const (
	UnlockActionRetry = "retry"
	UnlockActionReset = "reset"
)

// AccountResolver resolves accounts by login handle.
type AccountResolver interface {
	GetByLogin(ctx context.Context, login string) (*models.Account, error)
}

// UnlockCodeService issues and verifies emailed one-time unlock codes
// and enforces the resend cooldown.
type UnlockCodeService struct {
	accounts AccountResolver
	store    cache.KeyValueStore
	limiter  *AttemptLimiter
	email    EmailService
	logger   *slog.Logger
	codeTTL  time.Duration
	cooldown time.Duration
}

func NewUnlockCodeService(
	accounts AccountResolver,
	store cache.KeyValueStore,
	limiter *AttemptLimiter,
	email EmailService,
	logger *slog.Logger,
	codeTTL time.Duration,
	cooldown time.Duration,
) *UnlockCodeService {
	return &UnlockCodeService{
		accounts: accounts,
		store:    store,
		limiter:  limiter,
		email:    email,
		logger:   logger,
		codeTTL:  codeTTL,
		cooldown: cooldown,
	}
}

func unlockCodeKey(accountID string) string {
	return "auth:login:unlock_code:" + accountID
}

func unlockCooldownKey(accountID string) string {
	return "auth:login:unlock_cooldown:" + accountID
}

// SendCode issues a new unlock code for the account behind login and
// dispatches it by email. Whether the account exists is never revealed:
// an unknown handle returns nil exactly like a successful send. The only
// distinct outcome is ErrResendCooldownActive, returned with the
// remaining cooldown.
func (s *UnlockCodeService) SendCode(ctx context.Context, login string) (time.Duration, error) {
	account, err := s.accounts.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("unlock code requested for unknown login")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to resolve account: %w", err)
	}

	if remaining, err := s.store.TTL(ctx, unlockCooldownKey(account.ID)); err == nil {
		return remaining, models.ErrResendCooldownActive
	} else if !errors.Is(err, cache.ErrMiss) {
		return 0, fmt.Errorf("failed to check resend cooldown: %w", err)
	}

	code, err := pkgauth.GenerateNumericCode(unlockCodeLength)
	if err != nil {
		return 0, err
	}

	payload, err := json.Marshal(models.UnlockCode{Code: code, IssuedAt: time.Now().UTC()})
	if err != nil {
		return 0, fmt.Errorf("failed to encode unlock code: %w", err)
	}

	if err := s.store.SetWithTTL(ctx, unlockCodeKey(account.ID), string(payload), s.codeTTL); err != nil {
		return 0, fmt.Errorf("failed to store unlock code: %w", err)
	}
	if err := s.store.SetWithTTL(ctx, unlockCooldownKey(account.ID), "1", s.cooldown); err != nil {
		return 0, fmt.Errorf("failed to store resend cooldown: %w", err)
	}

	// Fire-and-forget: email dispatch must not block the response.
	go func(email, code string) {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := s.email.SendUnlockCode(sendCtx, email, code, s.codeTTL); err != nil {
			s.logger.Error("failed to dispatch unlock code email",
				slog.String("email", pkglogger.SanitizedEmail(email)),
				slog.Any("error", err))
		}
	}(account.Email, code)

	s.logger.Info("unlock code issued", slog.String("account_id", account.ID))
	return 0, nil
}

// VerifyCode checks a presented unlock code. On a match the attempt
// counter is cleared, the code is consumed, and the caller is told where
// to go next: social-only accounts always return to the login page (no
// password to reset), otherwise the requested action decides.
func (s *UnlockCodeService) VerifyCode(ctx context.Context, login, code, action string) (string, error) {
	account, err := s.accounts.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrCodeInvalidOrExpired
		}
		return "", fmt.Errorf("failed to resolve account: %w", err)
	}

	stored, err := s.store.Get(ctx, unlockCodeKey(account.ID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return "", models.ErrCodeInvalidOrExpired
		}
		return "", fmt.Errorf("failed to load unlock code: %w", err)
	}

	var unlockCode models.UnlockCode
	if err := json.Unmarshal([]byte(stored), &unlockCode); err != nil {
		return "", fmt.Errorf("failed to decode unlock code: %w", err)
	}

	if code == "" || code != unlockCode.Code {
		return "", models.ErrCodeInvalidOrExpired
	}

	if err := s.limiter.Clear(ctx, account.ID); err != nil {
		return "", err
	}
	if err := s.store.Delete(ctx, unlockCodeKey(account.ID)); err != nil {
		return "", fmt.Errorf("failed to consume unlock code: %w", err)
	}

	s.logger.Info("account unlocked", slog.String("account_id", account.ID))

	if account.IsSocialOnly() {
		return "/login", nil
	}
	if action == UnlockActionReset {
		return "/forgot-password?email=" + url.QueryEscape(account.Email), nil
	}
	return "/login", nil
}
