// Package handler contains the HTTP request handlers.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements http.Handler. Most of
// ours are methods with the http.HandlerFunc signature, which chi accepts
// directly.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (query params, JSON body, session)
//  2. Call the service layer
//  3. Write the response (status code, headers, body)
//
// Handlers hold no business logic. Each one depends on a small interface
// declared here, so tests can swap the service for a mock.
package handler

// RESPONSE HELPERS:
// Every JSON endpoint goes through writeJSON/writeError, so every error
// response has the same shape:
//
//	{"error": "not_found", "message": "user not found with id abc123"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/mymume/internal/apperror"
)

// maxBodyBytes caps JSON request bodies. Pasted playlists are the largest
// legitimate payload.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be set BEFORE the body: once Encode writes, the
// headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a domain error to its HTTP status and machine-readable type.
//
// errors.Is walks the whole chain, so a service error like
// fmt.Errorf("service/profile: loading: %w", apperror.NotFound(...)) still
// maps to 404. Services never see status codes.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotAPlaylist):
		return http.StatusBadRequest, "not_a_playlist"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps err to a status code and sends it. Only AppError messages
// reach the client; anything else becomes a generic 500 because raw errors
// may carry SQL or file paths.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := errorStatus(err)
		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a size-limited JSON body into dst. Malformed bodies come
// back as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", fmt.Sprintf("Request body must be at most %d bytes", maxBodyBytes))
		}
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}

// logFailure logs errors that end in a 5xx; client mistakes are not worth a line.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...any) {
	if status, _ := errorStatus(err); status < http.StatusInternalServerError {
		return
	}
	logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}
