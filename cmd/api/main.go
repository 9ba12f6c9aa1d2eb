package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mpole/hdt-auth/internal/auth"
	"github.com/mpole/hdt-auth/internal/background"
	"github.com/mpole/hdt-auth/internal/config"
	"github.com/mpole/hdt-auth/internal/database"
	"github.com/mpole/hdt-auth/internal/handlers"
	middlewareCustom "github.com/mpole/hdt-auth/internal/middleware"
	"github.com/mpole/hdt-auth/internal/models"
	"github.com/mpole/hdt-auth/internal/repositories"
	"github.com/mpole/hdt-auth/internal/routes"
	"github.com/mpole/hdt-auth/internal/services"
	pkgauth "github.com/mpole/hdt-auth/pkg/auth"
	pkghttp "github.com/mpole/hdt-auth/pkg/http"
	pkglogger "github.com/mpole/hdt-auth/pkg/logger"
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

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Initialize services
	lockoutService := services.NewLockoutService(accountRepo, logger, auditLogger)
	sessionService := services.NewSessionService(sessionRepo, tokenManager, logger, auditLogger, cfg.Session.MaxDevicesPerUser)
	authService := services.NewAuthService(
		accountRepo,
		lockoutService,
		sessionService,
		tokenManager,
		db,
		logger,
		auditLogger,
		cfg.Auth.PasswordChangePeriodDays,
	)

	// Session janitor for expired and long-inactive sessions
	janitor := background.NewJanitor(
		sessionService,
		logger,
		cfg.Session.ExpiredSweepInterval,
		cfg.Session.InactiveSweepInterval,
		cfg.Session.InactivityThreshold,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)

	// Bootstrap first admin account if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminAccount(ctx, accountRepo, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	cancel()

	// Setup router
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, tokenManager)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start session janitor
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()

	go janitor.Start(janitorCtx)

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

	janitorCancel()
	janitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminAccount creates the first admin account if ADMIN_LOGIN_ID and
// ADMIN_PASSWORD are set
func ensureAdminAccount(ctx context.Context, accountRepo *repositories.AccountRepository, logger *slog.Logger) error {
	adminLoginID := os.Getenv("ADMIN_LOGIN_ID")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminLoginID == "" || adminPassword == "" {
		logger.Info("no ADMIN_LOGIN_ID or ADMIN_PASSWORD set, skipping admin account creation")
		return nil
	}

	_, err := accountRepo.GetByLoginID(ctx, adminLoginID)
	if err == nil {
		logger.Info("admin account already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.Account{
		LoginID:      adminLoginID,
		PasswordHash: hashedPassword,
		Email:        os.Getenv("ADMIN_EMAIL"),
		Name:         "Administrator",
		Role:         "ADMIN",
		Enabled:      true,
	}

	if _, err := accountRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("admin account created successfully")
	return nil
}
