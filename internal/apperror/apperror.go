// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services return these errors; only the HTTP handler package translates
// them into status codes (see handler.writeError).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("Validation Error")
	ErrConflict          = errors.New("conflict")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTooLarge          = errors.New("too large")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
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

// InvalidUpdate reports a patch that names a field outside the allowed set.
// The whole patch is rejected, so it is a validation error.
func InvalidUpdate(field string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: "Invalid updates!",
		Field:   field,
	}
}

// Conflict reports a uniqueness violation on field.
func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Unauthenticated covers bad credentials and bad, absent or revoked tokens.
// The message must not reveal which of those conditions failed.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

func UnsupportedFormat(message string) *AppError {
	return &AppError{
		Err:     ErrUnsupportedFormat,
		Message: message,
	}
}

func TooLarge(limit int64) *AppError {
	return &AppError{
		Err:     ErrTooLarge,
		Message: fmt.Sprintf("File too large: limit is %d bytes", limit),
	}
}
