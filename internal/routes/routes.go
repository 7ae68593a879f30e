package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/lumen/internal/auth"
	"github.com/BradenHooton/lumen/internal/config"
	"github.com/BradenHooton/lumen/internal/handlers"
	"github.com/BradenHooton/lumen/internal/middleware"
	"github.com/BradenHooton/lumen/internal/models"
	"github.com/BradenHooton/lumen/internal/ratelimit"
	pkghttp "github.com/BradenHooton/lumen/pkg/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Auth     *handlers.AuthHandler
	Quiz     *handlers.QuizHandler
	Progress *handlers.ProgressHandler
	Task     *handlers.TaskHandler
	Health   *handlers.HealthHandler
}

// Deps carries what the middleware chain needs besides the handlers
type Deps struct {
	TokenManager *auth.TokenManager
	Limiter      ratelimit.Limiter
	IPConfig     *pkghttp.IPConfig
	Logger       *slog.Logger
}

// NewRouter builds the full chi router with global middleware
func NewRouter(cfg *config.Config, h Handlers, deps Deps) chi.Router {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middleware.SecureLogger(deps.Logger, deps.IPConfig))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(30 * time.Second))

	RegisterRoutes(router, cfg.RateLimit, h, deps)
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, rl config.RateLimitConfig, h Handlers, deps Deps) {
	credential := func(name string, limit int, window time.Duration) func(next http.Handler) http.Handler {
		return middleware.CredentialRateLimit(deps.Limiter, middleware.CredentialLimit{Name: name, Limit: limit, Window: window}, deps.IPConfig, deps.Logger)
	}

	volume := middleware.AuthenticatedRateLimitConfig{
		ReadOperationsPerMinute:  rl.ReadPerMinute,
		WriteOperationsPerMinute: rl.WritePerMinute,
		AdminOperationsPerMinute: rl.AdminPerMinute,
	}

	router.With(middleware.RateLimitByIP(rl.ReadPerMinute, deps.IPConfig)).Get("/health", h.Health.Health)

	// Public routes - no authentication required
	router.With(credential("register", rl.RegisterLimit, rl.RegisterWindow)).Post("/auth/register", h.Auth.Register)
	router.With(credential("login", rl.LoginLimit, rl.LoginWindow)).Post("/auth/login", h.Auth.Login)
	router.With(credential("refresh", rl.RefreshLimit, rl.RefreshWindow)).Post("/auth/refresh", h.Auth.RefreshToken)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(deps.TokenManager))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByUserID(volume, "read", deps.IPConfig))
			r.Get("/tasks", h.Task.List)
			r.Get("/tasks/{taskId}", h.Task.Get)
			r.Get("/quiz/{taskId}/submissions", h.Quiz.Submissions)
			r.Get("/learning/progress/{fileId}", h.Progress.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByUserID(volume, "write", deps.IPConfig))
			r.Post("/quiz/answer", h.Quiz.Answer)
			r.Post("/quiz/submit", h.Quiz.Submit)
			r.Post("/learning/progress/{fileId}", h.Progress.Report)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Use(middleware.RateLimitByUserID(volume, "admin", deps.IPConfig))
			r.Post("/admin/tasks", h.Task.Create)
			r.Post("/admin/tasks/{taskId}/assignments", h.Task.Assign)
		})
	})
}
