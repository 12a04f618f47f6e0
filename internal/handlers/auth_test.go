package handlers_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daylinehq/dayline/internal/cache"
	"github.com/daylinehq/dayline/internal/handlers"
	"github.com/daylinehq/dayline/internal/middleware"
	"github.com/daylinehq/dayline/internal/models"
	"github.com/daylinehq/dayline/internal/services"
)

func newTestFlashes(t *testing.T) *services.FlashStore {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return services.NewFlashStore(cache.NewRedisStoreFromClient(client), time.Minute)
}

func newAuthHandler(t *testing.T, service *handlers.MockLoginService, sessions *handlers.MockSessionRemover) (*handlers.AuthHandler, *services.FlashStore) {
	t.Helper()

	if sessions == nil {
		sessions = &handlers.MockSessionRemover{}
	}
	flashes := newTestFlashes(t)
	handler := handlers.NewAuthHandler(service, sessions, &handlers.MockAccountGetter{}, flashes, slog.Default(), false)
	return handler, flashes
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == middleware.SessionCookieName {
			return cookie
		}
	}
	return nil
}

func TestLogin_Success(t *testing.T) {
	var issuedSessionID string
	mockService := &handlers.MockLoginService{
		LoginFunc: func(ctx context.Context, login, password, newSessionID string) (*services.LoginResult, error) {
			issuedSessionID = newSessionID
			return &services.LoginResult{AccountID: "acct-1", Redirect: "/"}, nil
		},
	}

	handler, _ := newAuthHandler(t, mockService, nil)
	req := handlers.WithSessionContext(handlers.NewTestRequest(t, "POST", "/login", handlers.LoginRequest{
		Login:    "dana@example.com",
		Password: "hunter2pass",
	}), "guest-sid")

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "/", resp.Redirect)

	// The cookie rotates to the freshly minted session id.
	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie)
	assert.Equal(t, issuedSessionID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockService := &handlers.MockLoginService{
		LoginFunc: func(ctx context.Context, login, password, newSessionID string) (*services.LoginResult, error) {
			return nil, models.ErrInvalidCredentials
		},
	}

	handler, _ := newAuthHandler(t, mockService, nil)
	req := handlers.WithSessionContext(handlers.NewTestRequest(t, "POST", "/login", handlers.LoginRequest{
		Login:    "dana@example.com",
		Password: "wrongpassword",
	}), "guest-sid")

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 401, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "/login", resp.Redirect)
	assert.Nil(t, sessionCookie(t, w), "no session cookie on failure")
}

func TestLogin_LockedAnswers423WithFeedback(t *testing.T) {
	mockService := &handlers.MockLoginService{
		LoginFunc: func(ctx context.Context, login, password, newSessionID string) (*services.LoginResult, error) {
			return &services.LoginResult{
				Redirect: "/login/unlock?login=dana%40example.com",
				Feedback: &models.LoginFeedback{Type: models.FeedbackTypeLocked, AccountLocked: true},
			}, models.ErrAccountLocked
		},
	}

	handler, flashes := newAuthHandler(t, mockService, nil)
	req := handlers.WithSessionContext(handlers.NewTestRequest(t, "POST", "/login", handlers.LoginRequest{
		Login:    "dana@example.com",
		Password: "hunter2pass",
	}), "guest-sid")

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 423, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "/login/unlock?login=dana%40example.com", resp.Redirect)
	require.NotNil(t, resp.Feedback)
	assert.Equal(t, "locked", resp.Feedback.Type)
	assert.True(t, resp.Feedback.AccountLocked)

	// The feedback is also flashed for the next login page render.
	_, ok, err := flashes.Take(context.Background(), "guest-sid", services.FlashAuthFeedback)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLogin_MissingFields(t *testing.T) {
	handler, _ := newAuthHandler(t, &handlers.MockLoginService{}, nil)
	req := handlers.WithSessionContext(handlers.NewTestRequest(t, "POST", "/login", handlers.LoginRequest{
		Login: "dana@example.com",
	}), "guest-sid")

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestSocialLogin_Success(t *testing.T) {
	mockService := &handlers.MockLoginService{
		CompleteSocialLoginFunc: func(ctx context.Context, provider, subject, newSessionID string) (*services.LoginResult, error) {
			assert.Equal(t, "google", provider)
			return &services.LoginResult{AccountID: "acct-1", Redirect: "/"}, nil
		},
	}

	handler, _ := newAuthHandler(t, mockService, nil)
	req := handlers.WithSessionContext(handlers.NewTestRequest(t, "POST", "/login/social", handlers.SocialLoginRequest{
		Provider: "google",
		Subject:  "sub-123",
	}), "guest-sid")

	w := httptest.NewRecorder()
	handler.SocialLogin(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Success)
	require.NotNil(t, sessionCookie(t, w))
}

func TestSocialLogin_UnknownIdentity(t *testing.T) {
	handler, _ := newAuthHandler(t, &handlers.MockLoginService{}, nil)
	req := handlers.WithSessionContext(handlers.NewTestRequest(t, "POST", "/login/social", handlers.SocialLoginRequest{
		Provider: "google",
		Subject:  "sub-unknown",
	}), "guest-sid")

	w := httptest.NewRecorder()
	handler.SocialLogin(w, req)

	var resp handlers.LoginResponse
	handlers.AssertJSONResponse(t, w, 401, &resp)
	assert.False(t, resp.Success)
}

func TestLogout_DeletesSessionAndClearsCookie(t *testing.T) {
	sessions := &handlers.MockSessionRemover{}
	handler, _ := newAuthHandler(t, &handlers.MockLoginService{}, sessions)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/logout", nil), "sid-1", "acct-1")

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "/login", resp["redirect"])
	assert.Equal(t, []string{"sid-1"}, sessions.Deleted)

	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestLoginPage_ConsumesLogoutReason(t *testing.T) {
	handler, flashes := newAuthHandler(t, &handlers.MockLoginService{}, nil)
	ctx := context.Background()

	require.NoError(t, flashes.Set(ctx, "sid-1", services.FlashLogoutReason, models.LogoutReasonSuperseded))

	req := handlers.WithSessionContext(handlers.NewTestRequest(t, "GET", "/login", nil), "sid-1")
	w := httptest.NewRecorder()
	handler.LoginPage(w, req)

	var resp handlers.LoginPageResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, models.LogoutReasonSuperseded, resp.LogoutReason)

	// A second render has nothing left to show.
	req = handlers.WithSessionContext(handlers.NewTestRequest(t, "GET", "/login", nil), "sid-1")
	w = httptest.NewRecorder()
	handler.LoginPage(w, req)

	resp = handlers.LoginPageResponse{}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Empty(t, resp.LogoutReason)
}

func TestSession_EchoesAccount(t *testing.T) {
	flashes := newTestFlashes(t)
	accounts := &handlers.MockAccountGetter{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return &models.Account{ID: id, Email: "dana@example.com", Username: "dana"}, nil
		},
	}
	handler := handlers.NewAuthHandler(&handlers.MockLoginService{}, &handlers.MockSessionRemover{}, accounts, flashes, slog.Default(), false)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "GET", "/session", nil), "sid-1", "acct-1")
	w := httptest.NewRecorder()
	handler.Session(w, req)

	var resp handlers.SessionResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "acct-1", resp.AccountID)
	assert.Equal(t, "dana@example.com", resp.Email)
	assert.Equal(t, "dana", resp.Username)
}
