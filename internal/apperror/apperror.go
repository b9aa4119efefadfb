package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrForbidden    = errors.New("forbidden")
	ErrUpstream     = errors.New("upstream failure")
	ErrNotAPlaylist = errors.New("not a playlist")
)

type AppError struct {
	Err     error  // sentinel category, matched with errors.Is
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error from a lower layer
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the category and the cause so errors.Is works for either.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// Unauthorized returns an AppError for requests without a valid session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
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

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Upstream wraps a failure of an outbound dependency (scraper, catalog API,
// text generation, geolocation). The message is safe to show to users; the
// cause is kept for logs.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Cause:   cause,
	}
}

// NotAPlaylist is returned when the analyzer decides the submitted text does
// not look like a list of songs.
func NotAPlaylist(message string) *AppError {
	return &AppError{
		Err:     ErrNotAPlaylist,
		Message: message,
	}
}
