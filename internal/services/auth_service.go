package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/lumen/internal/auth"
	"github.com/BradenHooton/lumen/internal/models"
	pkgauth "github.com/BradenHooton/lumen/pkg/auth"
	pkglogger "github.com/BradenHooton/lumen/pkg/logger"
)

// UserRepository defines the interface for user storage
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
	CompareDummy(password string)
}

// Lockout is the account lockout tracker as used by login
type Lockout interface {
	LockedUntil(ctx context.Context, username string) (*time.Time, error)
	RecordFailure(ctx context.Context, username string) (bool, error)
	ResetOnSuccess(ctx context.Context, username string) error
	LockDuration() time.Duration
}

// AuthService handles registration, login and token refresh
type AuthService struct {
	repo        UserRepository
	tm          *auth.TokenManager
	hasher      PasswordHasher
	lockout     Lockout
	notifier    LockoutNotifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewAuthService creates a new AuthService. notifier may be nil.
func NewAuthService(repo UserRepository, tm *auth.TokenManager, hasher PasswordHasher, lockout Lockout, notifier LockoutNotifier, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		tm:          tm,
		hasher:      hasher,
		lockout:     lockout,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// RegisterInput carries a self-registration request
type RegisterInput struct {
	Username string
	Password string
	Name     string
	Email    string
}

// Register creates an employee account and signs the user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	username := models.NormalizeUsername(in.Username)
	if username == "" || strings.TrimSpace(in.Name) == "" {
		return nil, models.ErrInvalidInput
	}

	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, username, in.Password, in.Name, in.Email, models.RoleEmployee)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	s.auditLogger.LogAccountAction("user_registered", user.ID, "", nil)

	return s.issue(user)
}

func (s *AuthService) createUser(ctx context.Context, username, password, name, email, role string) (*models.User, error) {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.repo.Create(ctx, &models.User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// Login authenticates username/password. Failures count toward the account
// lockout whether or not the username exists.
func (s *AuthService) Login(ctx context.Context, username, password, ipAddress string) (*AuthResponse, error) {
	if username = models.NormalizeUsername(username); username == "" {
		s.logger.Warn("login attempt with empty username")
		return nil, models.ErrUnauthorized
	}

	until, err := s.lockout.LockedUntil(ctx, username)
	if err != nil {
		s.logger.Error("failed to check lockout", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if until != nil {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Username:      username,
			IPAddress:     ipAddress,
			FailureReason: "account_locked",
		})
		return nil, &models.AccountLockedError{Until: *until}
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to get user by username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user == nil {
		s.hasher.CompareDummy(password)
		return nil, s.loginFailed(ctx, username, ipAddress, nil)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, s.loginFailed(ctx, username, ipAddress, user)
	}

	if err := s.lockout.ResetOnSuccess(ctx, username); err != nil {
		s.logger.Error("failed to reset lockout", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return s.issue(user)
}

// loginFailed records the failure and picks the error for the caller. The
// failure that trips the lock is already answered as locked.
func (s *AuthService) loginFailed(ctx context.Context, username, ipAddress string, user *models.User) error {
	event := pkglogger.AuditEvent{
		EventType:     "login_failed",
		Username:      username,
		IPAddress:     ipAddress,
		FailureReason: "invalid_credentials",
	}
	if user != nil {
		event.UserID = user.ID
	}
	s.auditLogger.LogAuthAttempt(event)

	lockedNow, err := s.lockout.RecordFailure(ctx, username)
	if err != nil {
		s.logger.Error("failed to record login failure", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !lockedNow {
		return models.ErrUnauthorized
	}

	until := s.now().Add(s.lockout.LockDuration())
	s.auditLogger.LogLockout(username, ipAddress, until)

	if user != nil && s.notifier != nil {
		if err := s.notifier.NotifyLocked(ctx, user, until); err != nil {
			s.logger.Error("failed to send lockout notice", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}
	return &models.AccountLockedError{Until: until}
}

// RefreshToken exchanges a refresh token for a new token pair
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != models.TokenTypeRefresh {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	// Reload so a role change takes effect on the next access token
	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return s.issue(user)
}

// EnsureAdmin creates the bootstrap administrator when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username = models.NormalizeUsername(username)
	if username == "" || password == "" {
		return false, nil
	}

	_, err := s.createUser(ctx, username, password, "Administrator", "", models.RoleAdmin)
	switch {
	case errors.Is(err, models.ErrConflict):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	s.logger.Info("bootstrap admin created", slog.String("username", username))
	return true, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	accessToken, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
