package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daylinehq/dayline/internal/middleware"
	"github.com/daylinehq/dayline/internal/models"
	"github.com/daylinehq/dayline/pkg/httpx"
)

// PasswordResetServiceInterface defines the interface for the reset flow
type PasswordResetServiceInterface interface {
	RequestCode(ctx context.Context, sessionID, email string) (time.Duration, error)
	VerifyCode(ctx context.Context, sessionID, code string) error
	Reset(ctx context.Context, sessionID, email, newPassword string) error
	Cancel(ctx context.Context, sessionID string) error
}

// PasswordResetHandler handles the session-scoped password reset endpoints
type PasswordResetHandler struct {
	service PasswordResetServiceInterface
	logger  *slog.Logger
}

// NewPasswordResetHandler creates a new PasswordResetHandler
func NewPasswordResetHandler(service PasswordResetServiceInterface, logger *slog.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{service: service, logger: logger}
}

// SendResetCodeRequest represents the request body for requesting a reset code
type SendResetCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyResetCodeRequest represents the request body for verifying a reset code
type VerifyResetCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

// ResetPasswordRequest represents the request body for the final password change
type ResetPasswordRequest struct {
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// ResetResponse is shared by the reset endpoints
type ResetResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// SendResetCode starts a reset for the caller's session. Social-only
// accounts get a distinct refusal, locked accounts are told to unlock
// first, and unknown emails look exactly like a successful issuance.
func (h *PasswordResetHandler) SendResetCode(w http.ResponseWriter, r *http.Request) {
	var req SendResetCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	sessionID := middleware.SessionIDFromContext(r.Context())

	cooldown, err := h.service.RequestCode(r.Context(), sessionID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSocialAccountRestricted):
			httpx.WriteJSON(w, http.StatusOK, ResetResponse{
				Success: false,
				Message: "This account signs in with a social provider and has no password to reset.",
			})
		case errors.Is(err, models.ErrAccountLocked):
			httpx.WriteJSON(w, http.StatusLocked, ResetResponse{
				Success: false,
				Message: "This account is temporarily locked. Unlock it before resetting the password.",
			})
		case errors.Is(err, models.ErrResendCooldownActive):
			httpx.WriteJSON(w, http.StatusTooManyRequests, ResetResponse{
				Success:    false,
				TTLSeconds: ttlSeconds(cooldown),
			})
		default:
			h.logger.Error("failed to send reset code", slog.Any("error", err))
			httpx.WriteInternalError(w, "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ResetResponse{
		Success:    true,
		TTLSeconds: ttlSeconds(cooldown),
	})
}

// VerifyResetCode checks the presented code against the session's reset
// state. A mismatch leaves the state untouched.
func (h *PasswordResetHandler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyResetCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	sessionID := middleware.SessionIDFromContext(r.Context())

	if err := h.service.VerifyCode(r.Context(), sessionID, req.Code); err != nil {
		if errors.Is(err, models.ErrCodeInvalidOrExpired) {
			httpx.WriteJSON(w, http.StatusOK, ResetResponse{Success: false})
			return
		}
		h.logger.Error("failed to verify reset code", slog.Any("error", err))
		httpx.WriteInternalError(w, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ResetResponse{Success: true})
}

// Reset performs the password change for a verified session state.
func (h *PasswordResetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	sessionID := middleware.SessionIDFromContext(r.Context())

	if err := h.service.Reset(r.Context(), sessionID, req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, models.ErrCodeInvalidOrExpired):
			httpx.WriteJSON(w, http.StatusOK, ResetResponse{Success: false})
		case errors.Is(err, models.ErrBadRequest):
			httpx.WriteBadRequest(w, "Password does not meet requirements")
		default:
			h.logger.Error("failed to reset password", slog.Any("error", err))
			httpx.WriteInternalError(w, "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ResetResponse{Success: true})
}

// Cancel abandons the session's reset state.
func (h *PasswordResetHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())

	if err := h.service.Cancel(r.Context(), sessionID); err != nil {
		h.logger.Error("failed to cancel reset", slog.Any("error", err))
		httpx.WriteInternalError(w, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ResetResponse{Success: true})
}
