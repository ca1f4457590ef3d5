// Package handler contains the HTTP handlers of the dashboard API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, query, JSON body)
//  2. Call one service method
//  3. Write the JSON response (status code, headers, body)
//
// Each handler depends on a small interface declared next to it, not on a
// concrete service, so tests swap in testify mocks.
package handler

// RESPONSE HELPERS:
// Every JSON endpoint goes through writeJSON and writeError, so the shape
// of success and error bodies is decided in one place.
//
// CONSISTENT ERROR FORMAT:
// Every error response has the same shape:
//   {"error": "not_found", "message": "content post not found with id abc123"}
//
// The frontend can always rely on those two fields, whatever the status.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/content-dashboard/internal/apperror"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// MessageResponse is the body of endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written; once
// Encode writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent; all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation   → 400 validation_error
//	ErrUnauthorized → 401 unauthorized
//	ErrForbidden    → 403 forbidden
//	ErrNotFound     → 404 not_found
//	ErrConflict     → 409 conflict
//	ErrAdapter      → 502 adapter_error
//	anything else   → 500 internal_error
//
// Only AppError.Message reaches the client. The wrapped cause of an
// adapter failure (vendor payloads, URLs) stays in the server log.
//
// The status comes from the outermost AppError's own sentinel. Its Cause
// may hold another AppError (a missing credential inside an adapter
// failure) that must not decide the status.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch kind := appErr.Err; {
		case errors.Is(kind, apperror.ErrValidation):
			status, errorType = http.StatusBadRequest, "validation_error"
		case errors.Is(kind, apperror.ErrUnauthorized):
			status, errorType = http.StatusUnauthorized, "unauthorized"
		case errors.Is(kind, apperror.ErrForbidden):
			status, errorType = http.StatusForbidden, "forbidden"
		case errors.Is(kind, apperror.ErrNotFound):
			status, errorType = http.StatusNotFound, "not_found"
		case errors.Is(kind, apperror.ErrConflict):
			status, errorType = http.StatusConflict, "conflict"
		case errors.Is(kind, apperror.ErrAdapter):
			status, errorType = http.StatusBadGateway, "adapter_error"
			logger.Error("platform adapter failed", slog.String("error", err.Error()))
		}

		msg := appErr.Message
		if status == http.StatusInternalServerError {
			logger.Error("request failed", slog.String("error", err.Error()))
			msg = "An internal error occurred"
		}
		writeJSON(w, status, ErrorResponse{Error: errorType, Message: msg})
		return
	}

	// NEVER expose raw error text: it may carry SQL, file paths or tokens.
	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}
