package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/daylinehq/dayline/internal/middleware"
	"github.com/daylinehq/dayline/internal/models"
	"github.com/daylinehq/dayline/internal/services"
	"github.com/daylinehq/dayline/pkg/httpx"
)

// LoginServiceInterface defines the interface for login business logic
type LoginServiceInterface interface {
	Login(ctx context.Context, login, password, newSessionID string) (*services.LoginResult, error)
	CompleteSocialLogin(ctx context.Context, provider, subject, newSessionID string) (*services.LoginResult, error)
}

// SessionRemoverInterface deletes session rows on explicit logout
type SessionRemoverInterface interface {
	DeleteByID(ctx context.Context, id string) error
}

// AccountGetterInterface resolves the authenticated account for echo
type AccountGetterInterface interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// AuthHandler handles login, logout, and session introspection
type AuthHandler struct {
	service      LoginServiceInterface
	sessions     SessionRemoverInterface
	accounts     AccountGetterInterface
	flashes      *services.FlashStore
	logger       *slog.Logger
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service LoginServiceInterface,
	sessions SessionRemoverInterface,
	accounts AccountGetterInterface,
	flashes *services.FlashStore,
	logger *slog.Logger,
	secureCookie bool,
) *AuthHandler {
	return &AuthHandler{
		service:      service,
		sessions:     sessions,
		accounts:     accounts,
		flashes:      flashes,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

// Request/response DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SocialLoginRequest carries an externally verified provider identity
type SocialLoginRequest struct {
	Provider string `json:"provider" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
}

// LoginResponse represents the response body for login attempts
type LoginResponse struct {
	Success  bool                  `json:"success"`
	Redirect string                `json:"redirect,omitempty"`
	Feedback *models.LoginFeedback `json:"feedback,omitempty"`
}

// LoginPageResponse carries the read-once messages for the next login
// page render
type LoginPageResponse struct {
	LogoutReason string                `json:"logout_reason,omitempty"`
	Feedback     *models.LoginFeedback `json:"feedback,omitempty"`
}

// SessionResponse echoes the authenticated account
type SessionResponse struct {
	AccountID       string   `json:"account_id"`
	Email           string   `json:"email"`
	Username        string   `json:"username,omitempty"`
	SocialProviders []string `json:"social_providers,omitempty"`
}

// Login handles credential login. A blocked attempt answers 423 with the
// unlock redirect and the locked feedback, which is also flashed so the
// login page can re-render it.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	req.Login = strings.ToLower(strings.TrimSpace(req.Login))

	newSessionID := uuid.NewString()
	result, err := h.service.Login(r.Context(), req.Login, req.Password, newSessionID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAccountLocked):
			h.flashFeedback(r, result.Feedback)
			httpx.WriteJSON(w, http.StatusLocked, LoginResponse{
				Success:  false,
				Redirect: result.Redirect,
				Feedback: result.Feedback,
			})
		case errors.Is(err, models.ErrInvalidCredentials):
			httpx.WriteJSON(w, http.StatusUnauthorized, LoginResponse{
				Success:  false,
				Redirect: "/login",
			})
		default:
			h.logger.Error("login failed", slog.Any("error", err))
			httpx.WriteInternalError(w, "Internal server error")
		}
		return
	}

	middleware.SetSessionCookie(w, newSessionID, h.secureCookie)
	httpx.WriteJSON(w, http.StatusOK, LoginResponse{Success: true, Redirect: result.Redirect})
}

// SocialLogin completes a login whose identity was already verified by
// an external provider. Single-session enforcement applies exactly as
// for credential logins.
func (h *AuthHandler) SocialLogin(w http.ResponseWriter, r *http.Request) {
	var req SocialLoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	newSessionID := uuid.NewString()
	result, err := h.service.CompleteSocialLogin(r.Context(), req.Provider, req.Subject, newSessionID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			httpx.WriteJSON(w, http.StatusUnauthorized, LoginResponse{
				Success:  false,
				Redirect: "/login",
			})
			return
		}
		h.logger.Error("social login failed", slog.Any("error", err))
		httpx.WriteInternalError(w, "Internal server error")
		return
	}

	middleware.SetSessionCookie(w, newSessionID, h.secureCookie)
	httpx.WriteJSON(w, http.StatusOK, LoginResponse{Success: true, Redirect: result.Redirect})
}

// Logout deletes the caller's session row and expires the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID != "" {
		if err := h.sessions.DeleteByID(r.Context(), sessionID); err != nil {
			h.logger.Error("failed to delete session", slog.Any("error", err))
			httpx.WriteInternalError(w, "Internal server error")
			return
		}
	}

	middleware.ClearSessionCookie(w, h.secureCookie)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"redirect": "/login"})
}

// LoginPage returns and consumes the flashed messages for the login
// page: the forced-logout reason and any locked-account feedback.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())

	resp := LoginPageResponse{}

	reason, ok, err := h.flashes.Take(r.Context(), sessionID, services.FlashLogoutReason)
	if err != nil {
		h.logger.Error("failed to read logout reason flash", slog.Any("error", err))
		httpx.WriteInternalError(w, "Internal server error")
		return
	}
	if ok {
		resp.LogoutReason = reason
	}

	raw, ok, err := h.flashes.Take(r.Context(), sessionID, services.FlashAuthFeedback)
	if err != nil {
		h.logger.Error("failed to read auth feedback flash", slog.Any("error", err))
		httpx.WriteInternalError(w, "Internal server error")
		return
	}
	if ok {
		var feedback models.LoginFeedback
		if err := json.Unmarshal([]byte(raw), &feedback); err == nil {
			resp.Feedback = &feedback
		}
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Session echoes the authenticated account. Requires auth; the session
// middleware has already run the forced-logout detector ahead of this.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromContext(r.Context())

	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			httpx.WriteUnauthorized(w, "Authentication required")
			return
		}
		h.logger.Error("failed to load account", slog.Any("error", err))
		httpx.WriteInternalError(w, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, SessionResponse{
		AccountID:       account.ID,
		Email:           account.Email,
		Username:        account.Username,
		SocialProviders: account.SocialProviders,
	})
}

func (h *AuthHandler) flashFeedback(r *http.Request, feedback *models.LoginFeedback) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" || feedback == nil {
		return
	}

	payload, err := json.Marshal(feedback)
	if err != nil {
		return
	}
	if err := h.flashes.Set(r.Context(), sessionID, services.FlashAuthFeedback, string(payload)); err != nil {
		h.logger.Error("failed to flash auth feedback", slog.Any("error", err))
	}
}
