package services

import (
	"errors"
	"net/http"
)

// Sentinel errors for explicit error handling. Callers distinguish failure
// modes with errors.Is() instead of string matching.
var (
	// ErrKeyNotFound indicates no key matches the presented secret
	ErrKeyNotFound = errors.New("api key not found")

	// ErrKeyRevoked indicates the key exists but was revoked
	ErrKeyRevoked = errors.New("api key revoked")

	// ErrKeyExpired indicates the key exists but its expiration has passed
	ErrKeyExpired = errors.New("api key expired")

	// ErrNameRequired indicates a key was requested without a name
	ErrNameRequired = errors.New("key name is required")

	// ErrInvalidCredentials indicates admin authentication failed
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound indicates the admin user does not exist
	ErrUserNotFound = errors.New("user not found")
)

// ErrorType classifies request failures for HTTP mapping
type ErrorType string

const (
	ErrValidation      ErrorType = "VALIDATION_ERROR"
	ErrAuth            ErrorType = "AUTH_ERROR"
	ErrRateLimit       ErrorType = "RATE_LIMITED"
	ErrServiceDisabled ErrorType = "SERVICE_DISABLED"
	ErrStorage         ErrorType = "STORAGE_ERROR"
)

// AppError carries an error type, a caller-safe message and the HTTP status
// it maps to. Internal causes are logged, never returned to the caller.
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"error"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError builds an AppError with the status code implied by its type
func NewAppError(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		HTTPStatus: statusForType(errType),
		Cause:      cause,
	}
}

func statusForType(t ErrorType) int {
	switch t {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrAuth:
		return http.StatusUnauthorized
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrServiceDisabled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
