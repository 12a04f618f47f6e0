package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daylinehq/dayline/internal/models"
	"github.com/daylinehq/dayline/pkg/httpx"
)

// UnlockServiceInterface defines the interface for the unlock code flow
type UnlockServiceInterface interface {
	SendCode(ctx context.Context, login string) (time.Duration, error)
	VerifyCode(ctx context.Context, login, code, action string) (string, error)
}

// UnlockHandler handles the emailed unlock code endpoints
type UnlockHandler struct {
	service UnlockServiceInterface
	logger  *slog.Logger
}

// NewUnlockHandler creates a new UnlockHandler
func NewUnlockHandler(service UnlockServiceInterface, logger *slog.Logger) *UnlockHandler {
	return &UnlockHandler{service: service, logger: logger}
}

// SendCodeRequest represents the request body for issuing an unlock code
type SendCodeRequest struct {
	Login string `json:"login" validate:"required"`
}

// VerifyCodeRequest represents the request body for verifying an unlock
// code. Action is free-form: anything but "reset" ends up back at the
// login page.
type VerifyCodeRequest struct {
	Login  string `json:"login" validate:"required"`
	Code   string `json:"code" validate:"required"`
	Action string `json:"action"`
}

// CodeResponse is shared by the send and verify endpoints
type CodeResponse struct {
	Success    bool   `json:"success"`
	Redirect   string `json:"redirect,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// SendCode issues a fresh unlock code. The response never reveals
// whether the login exists; the only distinct outcome is the resend
// cooldown.
func (h *UnlockHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	req.Login = strings.ToLower(strings.TrimSpace(req.Login))

	remaining, err := h.service.SendCode(r.Context(), req.Login)
	if err != nil {
		if errors.Is(err, models.ErrResendCooldownActive) {
			httpx.WriteJSON(w, http.StatusTooManyRequests, CodeResponse{
				Success:    false,
				TTLSeconds: ttlSeconds(remaining),
			})
			return
		}
		h.logger.Error("failed to send unlock code", slog.Any("error", err))
		httpx.WriteInternalError(w, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, CodeResponse{Success: true})
}

// VerifyCode checks a presented unlock code and returns where to send
// the client next.
func (h *UnlockHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		httpx.WriteBadRequest(w, err.Error())
		return
	}

	req.Login = strings.ToLower(strings.TrimSpace(req.Login))

	redirect, err := h.service.VerifyCode(r.Context(), req.Login, req.Code, req.Action)
	if err != nil {
		if errors.Is(err, models.ErrCodeInvalidOrExpired) {
			httpx.WriteJSON(w, http.StatusOK, CodeResponse{Success: false})
			return
		}
		h.logger.Error("failed to verify unlock code", slog.Any("error", err))
		httpx.WriteInternalError(w, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, CodeResponse{Success: true, Redirect: redirect})
}

// ttlSeconds rounds a remaining duration up so a live cooldown never
// reports zero.
func ttlSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	seconds := int((d + time.Second - 1) / time.Second)
	return seconds
}
