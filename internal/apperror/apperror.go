package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConfig       = errors.New("configuration error")
	ErrAdapter      = errors.New("adapter error")
)

type AppError struct {
	Err     error  // sentinel the error matches with errors.Is
	Message string // Human-readable error message, safe to show clients
	Field   string // Optional: field or config key causing the error
	Cause   error  // Optional: underlying failure, for logs only
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is/As can walk either.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means no valid session was presented. The message never
// says whether a token was expired or malformed.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Config reports a missing or invalid startup setting. It is fatal.
func Config(key, message string) *AppError {
	return &AppError{
		Err:     ErrConfig,
		Message: fmt.Sprintf("config %s: %s", key, message),
		Field:   key,
	}
}

// Adapter wraps a failure of an external platform API during op (for
// example "sync" or "token refresh"). Message names only the platform and
// the operation; the vendor payload stays in Cause.
func Adapter(platform, op string, cause error) *AppError {
	return &AppError{
		Err:     ErrAdapter,
		Message: fmt.Sprintf("%s %s failed", platform, op),
		Field:   platform,
		Cause:   cause,
	}
}
