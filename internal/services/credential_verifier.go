package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/daylinehq/dayline/internal/models"
	pkgauth "github.com/daylinehq/dayline/pkg/auth"
)

// SocialAccountResolver resolves accounts by an externally verified
// provider identity.
type SocialAccountResolver interface {
	AccountResolver
	GetBySocialIdentity(ctx context.Context, provider, subject string) (*models.Account, error)
}

// SessionCreator persists a newly established session.
type SessionCreator interface {
	Create(ctx context.Context, session *models.Session) error
}

// LoginResult carries the outcome of a login attempt. Redirect and
// Feedback are set for blocked attempts so the transport layer can steer
// the client to the unlock flow.
type LoginResult struct {
	AccountID string
	Redirect  string
	Feedback  *models.LoginFeedback
}

// CredentialVerifier orchestrates identifier resolution, the lock gate,
// the password check, and limiter updates for each login request.
type CredentialVerifier struct {
	accounts SocialAccountResolver
	sessions SessionCreator
	limiter  *AttemptLimiter
	guard    *SessionGuard
	logger   *slog.Logger
}

func NewCredentialVerifier(
	accounts SocialAccountResolver,
	sessions SessionCreator,
	limiter *AttemptLimiter,
	guard *SessionGuard,
	logger *slog.Logger,
) *CredentialVerifier {
	return &CredentialVerifier{
		accounts: accounts,
		sessions: sessions,
		limiter:  limiter,
		guard:    guard,
		logger:   logger,
	}
}

func unlockRedirect(login string) string {
	return "/login/unlock?login=" + url.QueryEscape(login)
}

func lockedResult(login string) *LoginResult {
	return &LoginResult{
		Redirect: unlockRedirect(login),
		Feedback: &models.LoginFeedback{
			Type:          models.FeedbackTypeLocked,
			AccountLocked: true,
		},
	}
}

// Login runs the per-request state machine. On success the session row
// is created after the guard has flagged and removed every other session
// of the account. Failures never reveal whether the handle or the
// password was wrong.
func (v *CredentialVerifier) Login(ctx context.Context, login, password, newSessionID string) (*LoginResult, error) {
	account, err := v.accounts.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			v.logger.Info("login failed: unknown handle")
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}

	locked, err := v.limiter.IsLocked(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if locked {
		v.logger.Info("login blocked: account locked", slog.String("account_id", account.ID))
		return lockedResult(login), models.ErrAccountLocked
	}

	// Social-only accounts have no usable hash; the compare fails and
	// the limiter treats them like any other account.
	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		count, recordErr := v.limiter.RecordFailure(ctx, account.ID)
		if recordErr != nil {
			return nil, recordErr
		}

		// The attempt that crosses the threshold already answers as
		// locked, not with another generic failure.
		if count >= v.limiter.threshold {
			v.logger.Info("login failed: account now locked",
				slog.String("account_id", account.ID),
				slog.Int("failed_attempts", count))
			return lockedResult(login), models.ErrAccountLocked
		}

		v.logger.Info("login failed: invalid credentials")
		return nil, models.ErrInvalidCredentials
	}

	if err := v.limiter.Clear(ctx, account.ID); err != nil {
		return nil, err
	}

	return v.establishSession(ctx, account, newSessionID)
}

// CompleteSocialLogin establishes a session for an identity already
// verified by an external provider. The token exchange happened
// upstream; single-session enforcement still applies.
func (v *CredentialVerifier) CompleteSocialLogin(ctx context.Context, provider, subject, newSessionID string) (*LoginResult, error) {
	account, err := v.accounts.GetBySocialIdentity(ctx, provider, subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			v.logger.Info("social login failed: unknown identity", slog.String("provider", provider))
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to resolve social identity: %w", err)
	}

	return v.establishSession(ctx, account, newSessionID)
}

func (v *CredentialVerifier) establishSession(ctx context.Context, account *models.Account, newSessionID string) (*LoginResult, error) {
	if err := v.guard.OnLogin(ctx, account.ID, newSessionID); err != nil {
		return nil, err
	}

	if err := v.sessions.Create(ctx, &models.Session{ID: newSessionID, AccountID: account.ID}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	v.logger.Info("login succeeded",
		slog.String("account_id", account.ID),
		slog.String("session_id", newSessionID))

	return &LoginResult{AccountID: account.ID, Redirect: "/"}, nil
}
