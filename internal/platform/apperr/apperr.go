// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package apperr defines the centralized error handling framework for metastore.

It provides a rich error type that bridges the gap between low-level
repository/compiler errors and the HTTP error taxonomy in spec.md §7
(bad_request, unauthorized, forbidden, not_found, version_conflict,
record_deleted, upsert_failed, internal_error).

Architecture:

  - AppError: A struct containing a machine-readable code and a client-safe message.
  - Mapping: Explicit mapping from AppError to standard HTTP status codes.

Every error that leaves the service layer should be wrapped as an [AppError]
to ensure consistent API responses.
*/
package apperr

import (
	"errors"
	"net/http"
)

// AppError is the canonical error type for the metastore API.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to
// clients, to avoid leaking internal implementation details (e.g. SQL text).
type AppError struct {
	// Code is the machine-readable error kind from spec.md §7.
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for bad_request responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # spec.md §7 error kinds

// BadRequest creates a 400 error for schema validation or query-parse failures.
func BadRequest(msg string, details ...FieldError) *AppError {
	return &AppError{Code: "bad_request", Message: msg, HTTPStatus: http.StatusBadRequest, Details: details}
}

// Unauthorized creates a 401 error for a missing or invalid bearer token.
func Unauthorized(msg string) *AppError {
	return &AppError{Code: "unauthorized", Message: msg, HTTPStatus: http.StatusUnauthorized}
}

// Forbidden creates a 403 error for a missing scope or disallowed namespace.
func Forbidden(msg string) *AppError {
	return &AppError{Code: "forbidden", Message: msg, HTTPStatus: http.StatusForbidden}
}

// NotFound creates a 404 error for a missing record, audit entry or schema.
func NotFound(resource string) *AppError {
	return &AppError{Code: "not_found", Message: resource + " not found", HTTPStatus: http.StatusNotFound}
}

// VersionConflict creates a 409 error for an optimistic-lock mismatch.
func VersionConflict(msg string) *AppError {
	return &AppError{Code: "version_conflict", Message: msg, HTTPStatus: http.StatusConflict}
}

// RecordDeleted creates a 409 error for a patch/create against a soft-deleted row.
func RecordDeleted(msg string) *AppError {
	return &AppError{Code: "record_deleted", Message: msg, HTTPStatus: http.StatusConflict}
}

// UpsertFailed creates a 500 error for an unexpected empty write result.
func UpsertFailed(cause error) *AppError {
	return &AppError{Code: "upsert_failed", Message: "upsert produced no result", HTTPStatus: http.StatusInternalServerError, Cause: cause}
}

// Internal creates a 500 catch-all error wrapping an unexpected failure.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{Code: "internal_error", Message: "An unexpected error occurred", HTTPStatus: http.StatusInternalServerError, Cause: cause}
}

// ServiceUnavailable creates a 503 error for readiness/metrics being disabled.
func ServiceUnavailable(msg string) *AppError {
	return &AppError{Code: "service_unavailable", Message: msg, HTTPStatus: http.StatusServiceUnavailable}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
