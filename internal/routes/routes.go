package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/daylinehq/dayline/internal/handlers"
	"github.com/daylinehq/dayline/internal/middleware"
)

// RegisterRoutes registers all application routes. The session
// middleware (cookie resolution plus the forced-logout stage) wraps
// every route so supersession is detected before any business handler.
func RegisterRoutes(
	router chi.Router,
	sessionMW *middleware.SessionMiddleware,
	authHandler *handlers.AuthHandler,
	unlockHandler *handlers.UnlockHandler,
	resetHandler *handlers.PasswordResetHandler,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	router.Group(func(r chi.Router) {
		r.Use(sessionMW.Handler)

		// Credential and code endpoints share a per-IP throttle on top
		// of the account-scoped lockout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(rateLimitConfig))

			r.Post("/login", authHandler.Login)
			r.Post("/login/social", authHandler.SocialLogin)
			r.Post("/login/unlock/send-code", unlockHandler.SendCode)
			r.Post("/login/unlock/verify-code", unlockHandler.VerifyCode)
			r.Post("/password/send-reset-code", resetHandler.SendResetCode)
			r.Post("/password/verify-reset-code", resetHandler.VerifyResetCode)
			r.Post("/password/reset", resetHandler.Reset)
		})

		r.Get("/login", authHandler.LoginPage)
		r.Post("/logout", authHandler.Logout)
		r.Post("/password/cancel-reset", resetHandler.Cancel)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/session", authHandler.Session)
		})
	})
}
