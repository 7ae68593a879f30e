package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Lockout   LockoutConfig
	Quiz      QuizConfig
	Email     EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	CleanupInterval    time.Duration
}

// RateLimitConfig configures the sliding-window limiter guarding the
// credential endpoints and the per-user volume limit on everything else.
type RateLimitConfig struct {
	Backend        string // "memory" or "redis"
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	LoginLimit     int
	LoginWindow    time.Duration
	RegisterLimit  int
	RegisterWindow time.Duration
	RefreshLimit   int
	RefreshWindow  time.Duration
	ReadPerMinute  int
	WritePerMinute int
	AdminPerMinute int
}

type LockoutConfig struct {
	MaxFailures   int
	FailureWindow time.Duration
	LockDuration  time.Duration
}

type QuizConfig struct {
	MaxAttempts         int
	DefaultPassingScore int
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "lumen"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			CleanupInterval:    getEnvAsDuration("CLEANUP_INTERVAL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Backend:        strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
			RedisAddr:      getEnv("REDIS_ADDR", ""),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			RedisDB:        getEnvAsInt("REDIS_DB", 0),
			RedisKeyPrefix: getEnv("RATE_LIMIT_KEY_PREFIX", "lumen:rl"),
			LoginLimit:     getEnvAsInt("RATE_LIMIT_LOGIN", 5),
			LoginWindow:    getEnvAsDuration("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
			RegisterLimit:  getEnvAsInt("RATE_LIMIT_REGISTER", 3),
			RegisterWindow: getEnvAsDuration("RATE_LIMIT_REGISTER_WINDOW", time.Hour),
			RefreshLimit:   getEnvAsInt("RATE_LIMIT_REFRESH", 30),
			RefreshWindow:  getEnvAsDuration("RATE_LIMIT_REFRESH_WINDOW", 15*time.Minute),
			ReadPerMinute:  getEnvAsInt("RATE_LIMIT_READ_PER_MINUTE", 120),
			WritePerMinute: getEnvAsInt("RATE_LIMIT_WRITE_PER_MINUTE", 60),
			AdminPerMinute: getEnvAsInt("RATE_LIMIT_ADMIN_PER_MINUTE", 60),
		},
		Lockout: LockoutConfig{
			MaxFailures:   getEnvAsInt("LOCKOUT_MAX_FAILURES", 5),
			FailureWindow: getEnvAsDuration("LOCKOUT_FAILURE_WINDOW", 30*time.Minute),
			LockDuration:  getEnvAsDuration("LOCKOUT_DURATION", 30*time.Minute),
		},
		Quiz: QuizConfig{
			MaxAttempts:         getEnvAsInt("QUIZ_MAX_ATTEMPTS", 3),
			DefaultPassingScore: getEnvAsInt("QUIZ_DEFAULT_PASSING_SCORE", 60),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.RateLimit.validate(); err != nil {
		return nil, err
	}

	if err := cfg.Lockout.validate(); err != nil {
		return nil, err
	}

	if err := cfg.Quiz.validate(); err != nil {
		return nil, err
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED is set")
	}

	return cfg, nil
}

func (c *RateLimitConfig) validate() error {
	switch c.Backend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.Backend)
	}
	if c.LoginLimit <= 0 || c.RegisterLimit <= 0 || c.RefreshLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

func (c *LockoutConfig) validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("LOCKOUT_MAX_FAILURES must be positive")
	}
	if c.FailureWindow <= 0 || c.LockDuration <= 0 {
		return fmt.Errorf("LOCKOUT_FAILURE_WINDOW and LOCKOUT_DURATION must be positive")
	}
	return nil
}

func (c *QuizConfig) validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("QUIZ_MAX_ATTEMPTS must be positive")
	}
	if c.DefaultPassingScore < 0 || c.DefaultPassingScore > 100 {
		return fmt.Errorf("QUIZ_DEFAULT_PASSING_SCORE must be between 0 and 100")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
