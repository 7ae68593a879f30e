package handlers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/lumen/internal/models"
	pkgauth "github.com/BradenHooton/lumen/pkg/auth"
	pkghttp "github.com/BradenHooton/lumen/pkg/http"
)

// writeServiceError maps a service error onto its HTTP status and machine
// code. Anything unrecognised is a 500 with a generic message.
func writeServiceError(w http.ResponseWriter, err error) {
	var locked *models.AccountLockedError
	var weak *pkgauth.PasswordValidationError

	switch {
	case errors.As(err, &locked):
		retryAfter := int(math.Ceil(locked.RetryAfter(time.Now()).Seconds()))
		pkghttp.WriteRateLimited(w, "account_locked", "Account temporarily locked due to repeated failed logins", retryAfter)
	case errors.As(err, &weak):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "invalid_input", "Password does not meet requirements", strings.Join(weak.Errors, "; "))
	case errors.Is(err, models.ErrRateLimitExceeded):
		pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrInvalidOption):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_option", "Answer option is out of range")
	case errors.Is(err, models.ErrAlreadyAnswered):
		pkghttp.WriteError(w, http.StatusBadRequest, "already_answered", "Question has already been answered")
	case errors.Is(err, models.ErrAttemptsExhausted):
		pkghttp.WriteError(w, http.StatusBadRequest, "attempts_exhausted", "No quiz attempts remaining")
	case errors.Is(err, models.ErrAlreadyPassed):
		pkghttp.WriteError(w, http.StatusBadRequest, "already_passed", "Quiz has already been passed")
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid input")
	case errors.Is(err, models.ErrNotAssigned):
		pkghttp.WriteError(w, http.StatusForbidden, "not_assigned", "Task is not assigned to you")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Access denied")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
