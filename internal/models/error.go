package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication throttling
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrAccountLocked     = errors.New("account is temporarily locked")

	// Learning engine
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidOption     = errors.New("answer option out of range")
	ErrNotAssigned       = errors.New("task is not assigned to user")
	ErrAlreadyAnswered   = errors.New("question already answered")
	ErrAlreadyPassed     = errors.New("quiz already passed")
	ErrAttemptsExhausted = errors.New("quiz attempts exhausted")
)
