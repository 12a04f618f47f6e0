package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/daylinehq/dayline/internal/middleware"
	"github.com/daylinehq/dayline/internal/models"
	"github.com/daylinehq/dayline/internal/services"
	"github.com/daylinehq/dayline/pkg/httpx"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSessionContext attaches the session id the middleware would have
// resolved
func WithSessionContext(req *http.Request, sessionID string) *http.Request {
	return req.WithContext(middleware.WithSessionID(req.Context(), sessionID))
}

// WithAuthContext attaches a session id and an authenticated account id
func WithAuthContext(req *http.Request, sessionID, accountID string) *http.Request {
	ctx := middleware.WithSessionID(req.Context(), sessionID)
	ctx = middleware.WithAccountID(ctx, accountID)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp httpx.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	LoginFunc               func(ctx context.Context, login, password, newSessionID string) (*services.LoginResult, error)
	CompleteSocialLoginFunc func(ctx context.Context, provider, subject, newSessionID string) (*services.LoginResult, error)
}

func (m *MockLoginService) Login(ctx context.Context, login, password, newSessionID string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, login, password, newSessionID)
}

func (m *MockLoginService) CompleteSocialLogin(ctx context.Context, provider, subject, newSessionID string) (*services.LoginResult, error) {
	if m.CompleteSocialLoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.CompleteSocialLoginFunc(ctx, provider, subject, newSessionID)
}

// MockUnlockService implements UnlockServiceInterface for testing
type MockUnlockService struct {
	SendCodeFunc   func(ctx context.Context, login string) (time.Duration, error)
	VerifyCodeFunc func(ctx context.Context, login, code, action string) (string, error)
}

func (m *MockUnlockService) SendCode(ctx context.Context, login string) (time.Duration, error) {
	if m.SendCodeFunc == nil {
		return 0, nil
	}
	return m.SendCodeFunc(ctx, login)
}

func (m *MockUnlockService) VerifyCode(ctx context.Context, login, code, action string) (string, error) {
	if m.VerifyCodeFunc == nil {
		return "", models.ErrCodeInvalidOrExpired
	}
	return m.VerifyCodeFunc(ctx, login, code, action)
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestCodeFunc func(ctx context.Context, sessionID, email string) (time.Duration, error)
	VerifyCodeFunc  func(ctx context.Context, sessionID, code string) error
	ResetFunc       func(ctx context.Context, sessionID, email, newPassword string) error
	CancelFunc      func(ctx context.Context, sessionID string) error
}

func (m *MockPasswordResetService) RequestCode(ctx context.Context, sessionID, email string) (time.Duration, error) {
	if m.RequestCodeFunc == nil {
		return 90 * time.Second, nil
	}
	return m.RequestCodeFunc(ctx, sessionID, email)
}

func (m *MockPasswordResetService) VerifyCode(ctx context.Context, sessionID, code string) error {
	if m.VerifyCodeFunc == nil {
		return models.ErrCodeInvalidOrExpired
	}
	return m.VerifyCodeFunc(ctx, sessionID, code)
}

func (m *MockPasswordResetService) Reset(ctx context.Context, sessionID, email, newPassword string) error {
	if m.ResetFunc == nil {
		return models.ErrCodeInvalidOrExpired
	}
	return m.ResetFunc(ctx, sessionID, email, newPassword)
}

func (m *MockPasswordResetService) Cancel(ctx context.Context, sessionID string) error {
	if m.CancelFunc == nil {
		return nil
	}
	return m.CancelFunc(ctx, sessionID)
}

// MockSessionRemover implements SessionRemoverInterface for testing
type MockSessionRemover struct {
	DeleteByIDFunc func(ctx context.Context, id string) error
	Deleted        []string
}

func (m *MockSessionRemover) DeleteByID(ctx context.Context, id string) error {
	m.Deleted = append(m.Deleted, id)
	if m.DeleteByIDFunc == nil {
		return nil
	}
	return m.DeleteByIDFunc(ctx, id)
}

// MockAccountGetter implements AccountGetterInterface for testing
type MockAccountGetter struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Account, error)
}

func (m *MockAccountGetter) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetByIDFunc(ctx, id)
}
