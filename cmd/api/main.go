package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/authguard/internal/auth"
	"github.com/BradenHooton/authguard/internal/background"
	"github.com/BradenHooton/authguard/internal/config"
	"github.com/BradenHooton/authguard/internal/database"
	"github.com/BradenHooton/authguard/internal/handlers"
	middlewareCustom "github.com/BradenHooton/authguard/internal/middleware"
	"github.com/BradenHooton/authguard/internal/repositories"
	"github.com/BradenHooton/authguard/internal/routes"
	"github.com/BradenHooton/authguard/internal/services"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
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

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ctx := context.Background()

	// Initialize database
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	credentialRepo := repositories.NewCredentialRepository(db)
	profileRepo := repositories.NewProfileRepository(db)

	// Token manager for provider session, recovery and verification tokens
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, auth.TokenExpiries{
		Session:      cfg.Auth.SessionExpiry,
		Recovery:     cfg.Auth.RecoveryTokenExpiry,
		Verification: cfg.Auth.VerificationTokenExpiry,
	})

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.FailureDelay,
		RandomDelay: cfg.Auth.FailureJitter,
	})

	emailService, err := newEmailService(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	var sessionStore services.SessionTokenStore = services.NewMemorySessionStore()
	if cfg.Auth.SessionFile != "" {
		sessionStore = services.NewFileSessionStore(cfg.Auth.SessionFile)
		logger.Info("provider session persisted to file", slog.String("path", cfg.Auth.SessionFile))
	}

	clock := services.RealClock{}

	provider := services.NewLocalIdentityProvider(
		credentialRepo,
		tokenManager,
		emailService,
		sessionStore,
		timingDelay,
		clock,
		logger,
		services.LocalIdentityProviderConfig{
			RequireEmailVerification: cfg.Auth.RequireEmailVerification,
			VerificationURL:          cfg.Auth.VerificationURL,
			RatePerMinute:            cfg.Auth.ProviderRatePerMinute,
		},
	)

	// Session guard: attempt tracker, audit log and session manager
	tracker := services.NewAttemptTracker(services.LockoutPolicy{
		MaxAttempts:     cfg.Lockout.MaxAttempts,
		AttemptWindow:   cfg.Lockout.AttemptWindow,
		LockoutDuration: cfg.Lockout.LockoutDuration,
	}, clock)
	auditLog := services.NewSecurityAuditLog(cfg.Lockout.AuditCapacity, clock, pkglogger.NewAuditLogger(logger), logger)
	sessionManager := services.NewSessionManager(provider, profileRepo, tracker, auditLog, clock, logger,
		services.SessionManagerConfig{ResetRedirectURL: cfg.Auth.ResetRedirectURL})

	// Restore a persisted provider session before serving
	restoreCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := sessionManager.CheckAuth(restoreCtx); err != nil {
		logger.Warn("session restore failed", slog.Any("error", err))
	}
	cancel()

	ipConfig, invalidProxies := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if len(invalidProxies) > 0 {
		logger.Warn("ignoring invalid trusted proxy ranges", slog.String("ranges", strings.Join(invalidProxies, ",")))
	}

	authHandler := handlers.NewAuthHandler(sessionManager, provider, ipConfig, logger)

	cleanupManager := background.NewCleanupManager(tracker, logger, cfg.Lockout.SweepInterval)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, db, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		IPConfig:          ipConfig,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func newEmailService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.EmailService, error) {
	if cfg.Email.Provider == "ses" {
		return services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
	}
	logger.Warn("EMAIL_PROVIDER=log: reset and verification links are logged, not sent")
	return services.NewLogEmailService(logger, cfg.Server.Env), nil
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
