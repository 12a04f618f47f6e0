package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/daylinehq/dayline/internal/models"
	"github.com/daylinehq/dayline/internal/services"
	"github.com/daylinehq/dayline/pkg/httpx"
)

// SessionCookieName carries the opaque session id. The same cookie
// identifies guests so pre-login flows (password reset state, flashes)
// can be session-scoped.
const SessionCookieName = "dayline_session"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	accountIDKey contextKey = "account_id"
)

// SessionReader is the session access the middleware needs.
type SessionReader interface {
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Touch(ctx context.Context, id string) error
}

// SessionMiddleware resolves the session cookie on every request. It
// runs the forced-logout detector before any business handler, mints a
// guest session id when no cookie is present, and attaches the account
// id for rows that resolve to a live session.
type SessionMiddleware struct {
	sessions SessionReader
	detector *services.ForcedLogoutDetector
	flashes  *services.FlashStore
	logger   *slog.Logger
	secure   bool
}

func NewSessionMiddleware(
	sessions SessionReader,
	detector *services.ForcedLogoutDetector,
	flashes *services.FlashStore,
	logger *slog.Logger,
	secure bool,
) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: sessions,
		detector: detector,
		flashes:  flashes,
		logger:   logger,
		secure:   secure,
	}
}

// SetSessionCookie writes the session cookie. Login handlers call this
// to rotate the id after authentication.
func SetSessionCookie(w http.ResponseWriter, sessionID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// Handler is the per-request session stage:
//
//  1. No cookie: mint a guest session id and continue unauthenticated.
//  2. Forced-logout flag set for the cookie's id: consume it and answer
//     the request itself with a redirect to the login page carrying the
//     reason. The stale id never reaches a business handler.
//  3. Cookie resolves to a session row: attach the account and touch
//     last_activity.
//  4. Cookie resolves to nothing: plain expiry, continue as guest.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			sessionID := uuid.NewString()
			SetSessionCookie(w, sessionID, m.secure)
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
			return
		}

		sessionID := cookie.Value
		ctx := WithSessionID(r.Context(), sessionID)

		reason, err := m.detector.Check(ctx, sessionID)
		if err != nil {
			if errors.Is(err, models.ErrSessionSuperseded) {
				m.redirectSuperseded(w, r, reason)
				return
			}
			m.logger.Error("forced-logout check failed", slog.Any("error", err))
			httpx.WriteInternalError(w, "Internal server error")
			return
		}

		session, err := m.sessions.GetByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				// Expired or never existed; the id still scopes guest state.
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			m.logger.Error("session lookup failed", slog.Any("error", err))
			httpx.WriteInternalError(w, "Internal server error")
			return
		}

		if err := m.sessions.Touch(ctx, sessionID); err != nil {
			m.logger.Error("failed to touch session", slog.Any("error", err))
		}

		next.ServeHTTP(w, r.WithContext(WithAccountID(ctx, session.AccountID)))
	})
}

// forcedLogoutResponse answers a non-GET request on a superseded session.
type forcedLogoutResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

// redirectSuperseded answers the superseded session's own request. The
// stale cookie is replaced with a fresh guest id, and the reason is
// flashed under that id so the next login page render can show it. GETs
// get a browser redirect; API-style requests get a 401 with the target.
func (m *SessionMiddleware) redirectSuperseded(w http.ResponseWriter, r *http.Request, reason string) {
	guestID := uuid.NewString()
	if err := m.flashes.Set(r.Context(), guestID, services.FlashLogoutReason, reason); err != nil {
		m.logger.Error("failed to flash logout reason", slog.Any("error", err))
	}
	SetSessionCookie(w, guestID, m.secure)

	if r.Method == http.MethodGet {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	httpx.WriteJSON(w, http.StatusUnauthorized, forcedLogoutResponse{
		Error:    "session_superseded",
		Message:  reason,
		Redirect: "/login",
	})
}

// RequireAuth rejects requests that did not resolve to a live session.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if AccountIDFromContext(r.Context()) == "" {
			httpx.WriteUnauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithSessionID attaches a session id to the context. Exposed for
// handler tests.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithAccountID marks the context as authenticated. Exposed for
// handler tests.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// SessionIDFromContext returns the request's session id, guest or
// authenticated. Empty only when the middleware did not run.
func SessionIDFromContext(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDKey).(string)
	return sessionID
}

// AccountIDFromContext returns the authenticated account id, or empty
// for guests.
func AccountIDFromContext(ctx context.Context) string {
	accountID, _ := ctx.Value(accountIDKey).(string)
	return accountID
}
