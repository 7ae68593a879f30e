package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/lumen/internal/auth"
	"github.com/BradenHooton/lumen/internal/ratelimit"
	pkghttp "github.com/BradenHooton/lumen/pkg/http"
	"github.com/go-chi/httprate"
)

// CredentialLimit is the sliding window applied to one credential endpoint
type CredentialLimit struct {
	Name   string // distinguishes endpoints sharing a client IP
	Limit  int
	Window time.Duration
}

// CredentialRateLimit throttles a credential endpoint per client IP through
// limiter. Every response carries X-RateLimit-* headers; denied requests get
// a 429 with retryAfter in seconds. When the limiter itself fails the request
// is let through and the error logged.
func CredentialRateLimit(limiter ratelimit.Limiter, rule CredentialLimit, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := rule.Name + ":" + pkghttp.ExtractClientIP(r, ipConfig)

			res, err := limiter.Check(r.Context(), identifier, rule.Limit, rule.Window)
			if err != nil {
				logger.Error("rate limiter unavailable",
					slog.String("rule", rule.Name),
					slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(math.Ceil(res.RetryAfter(time.Now()).Seconds()))
				logger.Warn("rate limit exceeded",
					slog.String("rule", rule.Name),
					slog.Int("retry_after", retryAfter))
				pkghttp.WriteRateLimited(w, "rate_limit_exceeded", "Too many requests, please try again later", retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthenticatedRateLimitConfig holds per-user volume limits by operation class
type AuthenticatedRateLimitConfig struct {
	ReadOperationsPerMinute  int
	WriteOperationsPerMinute int
	AdminOperationsPerMinute int
}

func (c AuthenticatedRateLimitConfig) perMinute(operation string) int {
	switch operation {
	case "write":
		return c.WriteOperationsPerMinute
	case "admin":
		return c.AdminOperationsPerMinute
	default:
		return c.ReadOperationsPerMinute
	}
}

// RateLimitByUserID limits authenticated traffic per user for one operation
// class. Requests without claims fall back to the client IP.
func RateLimitByUserID(config AuthenticatedRateLimitConfig, operation string, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	clientIP := pkghttp.ClientIPKey(ipConfig)
	return httprate.Limit(
		config.perMinute(operation),
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID != "" {
				return operation + ":user:" + claims.UserID, nil
			}
			ip, err := clientIP(r)
			return operation + ":ip:" + ip, err
		}),
		httprate.WithLimitHandler(limitExceeded(time.Minute)),
	)
}

// RateLimitByIP limits requests per client IP
func RateLimitByIP(requestsPerMinute int, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(pkghttp.ClientIPKey(ipConfig)),
		httprate.WithLimitHandler(limitExceeded(time.Minute)),
	)
}

func limitExceeded(window time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteRateLimited(w, "rate_limit_exceeded", "Too many requests, please try again later", int(window.Seconds()))
	}
}
