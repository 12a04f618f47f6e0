package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/daylinehq/dayline/internal/background"
	"github.com/daylinehq/dayline/internal/cache"
	"github.com/daylinehq/dayline/internal/config"
	"github.com/daylinehq/dayline/internal/database"
	"github.com/daylinehq/dayline/internal/handlers"
	middlewareCustom "github.com/daylinehq/dayline/internal/middleware"
	"github.com/daylinehq/dayline/internal/repositories"
	"github.com/daylinehq/dayline/internal/routes"
	"github.com/daylinehq/dayline/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if os.Getenv("RUN_MIGRATIONS") == "true" {
		if err := database.Migrate(cfg.Database.DSN(), "migrations"); err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	// Initialize cache
	store, err := cache.NewRedisStore(&cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	// Email service (SES or SMTP per config)
	emailService, err := services.NewEmailService(&cfg.Email, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	limiter := services.NewAttemptLimiter(store, cfg.Auth.LockThreshold, cfg.Auth.LockWindow, logger)
	guard := services.NewSessionGuard(sessionRepo, store, cfg.Auth.ForcedLogoutFlagTTL, logger)
	verifier := services.NewCredentialVerifier(accountRepo, sessionRepo, limiter, guard, logger)
	unlockService := services.NewUnlockCodeService(accountRepo, store, limiter, emailService, logger, cfg.Auth.UnlockCodeTTL, cfg.Auth.ResendCooldown)
	resetService := services.NewPasswordResetService(accountRepo, store, limiter, emailService, logger, cfg.Auth.UnlockCodeTTL, cfg.Auth.ResendCooldown)
	detector := services.NewForcedLogoutDetector(sessionRepo, store, logger)
	flashes := services.NewFlashStore(store, cfg.Auth.ForcedLogoutFlagTTL)

	secureCookie := cfg.Server.Env == "production"
	sessionMW := middlewareCustom.NewSessionMiddleware(sessionRepo, detector, flashes, logger, secureCookie)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(verifier, sessionRepo, accountRepo, flashes, logger, secureCookie)
	unlockHandler := handlers.NewUnlockHandler(unlockService, logger)
	resetHandler := handlers.NewPasswordResetHandler(resetService, logger)

	// Idle session sweeper
	sweeper := background.NewSessionSweeper(sessionRepo, logger, cfg.Auth.SessionIdleTTL, cfg.Auth.SessionSweepInterval)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, sessionMW, authHandler, unlockHandler, resetHandler)

	// Health check with database and redis
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","redis":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start sweeper
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweeper.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
