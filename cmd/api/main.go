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

	"github.com/BradenHooton/lumen/internal/auth"
	"github.com/BradenHooton/lumen/internal/background"
	"github.com/BradenHooton/lumen/internal/config"
	"github.com/BradenHooton/lumen/internal/database"
	"github.com/BradenHooton/lumen/internal/handlers"
	"github.com/BradenHooton/lumen/internal/ratelimit"
	"github.com/BradenHooton/lumen/internal/repositories"
	"github.com/BradenHooton/lumen/internal/routes"
	"github.com/BradenHooton/lumen/internal/services"
	pkgauth "github.com/BradenHooton/lumen/pkg/auth"
	pkghttp "github.com/BradenHooton/lumen/pkg/http"
	pkglogger "github.com/BradenHooton/lumen/pkg/logger"
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

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Rate limiter backend
	var (
		limiter       ratelimit.Limiter
		memLimiter    *ratelimit.MemoryLimiter
		limiterHealth handlers.Pinger
	)
	switch cfg.RateLimit.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		rdb, err := ratelimit.DialRedis(ctx, cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword, cfg.RateLimit.RedisDB)
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		redisLimiter := ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.RedisKeyPrefix)
		limiter, limiterHealth = redisLimiter, redisLimiter
		logger.Info("using redis rate limiter", slog.String("addr", cfg.RateLimit.RedisAddr))
	default:
		memLimiter = ratelimit.NewMemoryLimiter()
		limiter = memLimiter
		logger.Info("using in-memory rate limiter")
	}

	// Lockout notifications
	var notifier services.LockoutNotifier = services.NewLogLockoutNotifier(logger)
	if cfg.Email.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesNotifier, err := services.NewAWSSESLockoutNotifier(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	progressRepo := repositories.NewProgressRepository(db)
	quizRepo := repositories.NewQuizRepository(db)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Initialize services
	lockoutService := services.NewLockoutService(loginAttemptRepo, services.LockoutConfig{
		MaxFailures:   cfg.Lockout.MaxFailures,
		FailureWindow: cfg.Lockout.FailureWindow,
		LockDuration:  cfg.Lockout.LockDuration,
	}, logger)
	authService := services.NewAuthService(userRepo, tokenManager, pkgauth.NewHasher(pkgauth.BcryptCost), lockoutService, notifier, logger, auditLogger)
	completionService := services.NewCompletionService(taskRepo, logger, auditLogger)
	progressService := services.NewProgressService(progressRepo, taskRepo, completionService, logger)
	quizService := services.NewQuizService(quizRepo, taskRepo, completionService, services.QuizConfig{
		MaxAttempts:         cfg.Quiz.MaxAttempts,
		DefaultPassingScore: cfg.Quiz.DefaultPassingScore,
	}, logger, auditLogger)
	taskService := services.NewTaskService(taskRepo, quizRepo, progressRepo, userRepo, logger, auditLogger)

	// Bootstrap first admin user if configured
	ensureAdmin(authService, logger)

	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	router := routes.NewRouter(cfg, routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService, ipConfig),
		Quiz:     handlers.NewQuizHandler(quizService),
		Progress: handlers.NewProgressHandler(progressService),
		Task:     handlers.NewTaskHandler(taskService),
		Health:   handlers.NewHealthHandler(db, limiterHealth, logger),
	}, routes.Deps{
		TokenManager: tokenManager,
		Limiter:      limiter,
		IPConfig:     ipConfig,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	var sweeper background.WindowSweeper
	if memLimiter != nil {
		sweeper = memLimiter
	}
	cleanupManager := background.NewCleanupManager(lockoutService, sweeper, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
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

	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdmin creates the first admin user if ADMIN_USERNAME and ADMIN_PASSWORD are set
func ensureAdmin(authService *services.AuthService, logger *slog.Logger) {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping admin user creation")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := authService.EnsureAdmin(ctx, username, password)
	if err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
		return
	}
	if created {
		logger.Info("admin user created", slog.String("username", username))
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
