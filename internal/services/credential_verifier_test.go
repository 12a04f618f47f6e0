package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daylinehq/dayline/internal/models"
	pkgauth "github.com/daylinehq/dayline/pkg/auth"
)

func newVerifierFixture(t *testing.T, accounts *mockAccountStore, sessions *mockSessionStore) *CredentialVerifier {
	t.Helper()

	store, _ := newTestCache(t)
	logger := slog.Default()
	limiter := NewAttemptLimiter(store, 5, 900*time.Second, logger)
	guard := NewSessionGuard(sessions, store, 24*time.Hour, logger)

	return NewCredentialVerifier(accounts, sessions, limiter, guard, logger)
}

func testAccount(t *testing.T, password string) *models.Account {
	t.Helper()

	account := &models.Account{
		ID:    "acct-1",
		Email: "dana@example.com",
	}
	if password != "" {
		hash, err := pkgauth.HashPassword(password)
		require.NoError(t, err)
		account.PasswordHash = hash
	}
	return account
}

func TestCredentialVerifier_Login_Success(t *testing.T) {
	account := testAccount(t, "swordfish-42")
	accounts := &mockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
	}
	sessions := newMockSessionStore()
	verifier := newVerifierFixture(t, accounts, sessions)

	result, err := verifier.Login(context.Background(), "dana@example.com", "swordfish-42", "sid-new")

	require.NoError(t, err)
	assert.Equal(t, "acct-1", result.AccountID)
	assert.Equal(t, "/", result.Redirect)
	assert.Nil(t, result.Feedback)

	created, err := sessions.GetByID(context.Background(), "sid-new")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", created.AccountID)
}

func TestCredentialVerifier_Login_UnknownHandleIsGeneric(t *testing.T) {
	verifier := newVerifierFixture(t, &mockAccountStore{}, newMockSessionStore())

	result, err := verifier.Login(context.Background(), "nobody@example.com", "whatever-1", "sid-new")

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Nil(t, result)
}

func TestCredentialVerifier_Login_FifthFailureAnswersLocked(t *testing.T) {
	account := testAccount(t, "swordfish-42")
	accounts := &mockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
	}
	verifier := newVerifierFixture(t, accounts, newMockSessionStore())
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		result, err := verifier.Login(ctx, "dana@example.com", "wrong-pass-1", "sid-new")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials, "attempt %d", i)
		assert.Nil(t, result, "attempt %d", i)
	}

	// The attempt that crosses the threshold already carries the locked
	// feedback, not another generic failure.
	result, err := verifier.Login(ctx, "dana@example.com", "wrong-pass-1", "sid-new")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	require.NotNil(t, result)
	require.NotNil(t, result.Feedback)
	assert.Equal(t, models.FeedbackTypeLocked, result.Feedback.Type)
	assert.True(t, result.Feedback.AccountLocked)
	assert.Contains(t, result.Redirect, "/login/unlock?login=")
}

func TestCredentialVerifier_Login_LockedBlocksCorrectPassword(t *testing.T) {
	account := testAccount(t, "swordfish-42")
	accounts := &mockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
	}
	verifier := newVerifierFixture(t, accounts, newMockSessionStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = verifier.Login(ctx, "dana@example.com", "wrong-pass-1", "sid-new")
	}

	result, err := verifier.Login(ctx, "dana@example.com", "swordfish-42", "sid-new")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	require.NotNil(t, result)
	assert.True(t, result.Feedback.AccountLocked)
}

func TestCredentialVerifier_Login_SuccessClearsCounter(t *testing.T) {
	account := testAccount(t, "swordfish-42")
	accounts := &mockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
	}
	verifier := newVerifierFixture(t, accounts, newMockSessionStore())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = verifier.Login(ctx, "dana@example.com", "wrong-pass-1", "sid-a")
	}

	_, err := verifier.Login(ctx, "dana@example.com", "swordfish-42", "sid-b")
	require.NoError(t, err)

	// A fresh failure starts over at one, far from the threshold.
	result, err := verifier.Login(ctx, "dana@example.com", "wrong-pass-1", "sid-c")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Nil(t, result)
}

func TestCredentialVerifier_Login_SocialOnlyFailsLikeWrongPassword(t *testing.T) {
	account := testAccount(t, "")
	account.SocialProviders = []string{"google"}
	accounts := &mockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
	}
	verifier := newVerifierFixture(t, accounts, newMockSessionStore())
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, err := verifier.Login(ctx, "dana@example.com", "any-pass-1", "sid-new")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	}

	// Lock and limiter behavior is identical regardless of account kind.
	_, err := verifier.Login(ctx, "dana@example.com", "any-pass-1", "sid-new")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
}

func TestCredentialVerifier_Login_SupersedesOtherSessions(t *testing.T) {
	account := testAccount(t, "swordfish-42")
	accounts := &mockAccountStore{
		GetByLoginFunc: func(ctx context.Context, login string) (*models.Account, error) {
			return account, nil
		},
	}
	sessions := newMockSessionStore(
		&models.Session{ID: "sid-old", AccountID: "acct-1"},
		&models.Session{ID: "sid-other-account", AccountID: "acct-2"},
	)
	verifier := newVerifierFixture(t, accounts, sessions)

	_, err := verifier.Login(context.Background(), "dana@example.com", "swordfish-42", "sid-new")
	require.NoError(t, err)

	_, err = sessions.GetByID(context.Background(), "sid-old")
	assert.ErrorIs(t, err, models.ErrNotFound, "old session must be deleted")

	_, err = sessions.GetByID(context.Background(), "sid-other-account")
	assert.NoError(t, err, "other accounts' sessions are never touched")

	remaining, err := sessions.ListByAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.Equal(t, "sid-new", remaining[0].ID)
}

func TestCredentialVerifier_CompleteSocialLogin(t *testing.T) {
	account := testAccount(t, "")
	account.SocialProviders = []string{"google"}
	accounts := &mockAccountStore{
		GetBySocialIdentityFunc: func(ctx context.Context, provider, subject string) (*models.Account, error) {
			if provider == "google" && subject == "sub-123" {
				return account, nil
			}
			return nil, models.ErrNotFound
		},
	}
	sessions := newMockSessionStore(&models.Session{ID: "sid-old", AccountID: "acct-1"})
	verifier := newVerifierFixture(t, accounts, sessions)

	result, err := verifier.CompleteSocialLogin(context.Background(), "google", "sub-123", "sid-new")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", result.AccountID)

	// Single-session enforcement applies to social logins too.
	_, err = sessions.GetByID(context.Background(), "sid-old")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = verifier.CompleteSocialLogin(context.Background(), "google", "sub-unknown", "sid-x")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}
