// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package respond provides a unified API response envelope for the platform.

It ensures that every HTTP response, whether a success payload or an error
diagnostic, follows a predictable JSON structure for client robustness.

Architecture:

  - Envelope: All responses are wrapped in a standard structure.
  - JSON: Default content-type is 'application/json; charset=utf-8'.
  - Errors: Integrates with 'apperr' for consistent error reporting.

This package eliminates the need for manual JSON marshalling in individual handlers.
*/
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/apphub/metastore/internal/platform/ctxkey"
)

// # JSON Envelopes

// Pagination describes a page of a search/list result.
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// SearchEnvelope is the JSON envelope for a record search/list response.
type SearchEnvelope struct {
	Pagination Pagination  `json:"pagination"`
	Records    interface{} `json:"records"`
}

// OperationsEnvelope is the JSON envelope for a bulk write response.
type OperationsEnvelope struct {
	Operations interface{} `json:"operations"`
}

// ErrorEnvelope is the JSON envelope for error responses.
type ErrorEnvelope struct {
	Error   string              `json:"error"`
	Code    string              `json:"code"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

// # Response Helpers

// JSON writes a JSON response with the given status code.
func JSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

// Record writes a single-record envelope `{record}`, optionally merging in
// extra top-level flags such as `created`, `deleted`, `purged`, `restored`,
// or `idempotent` per spec.md §6.
func Record(writer http.ResponseWriter, statusCode int, record interface{}, extra map[string]interface{}) {
	envelope := map[string]interface{}{"record": record}
	for k, v := range extra {
		envelope[k] = v
	}
	JSON(writer, statusCode, envelope)
}

// Search writes a `{pagination, records}` envelope for search/list endpoints.
func Search(writer http.ResponseWriter, records interface{}, total, limit, offset int) {
	JSON(writer, http.StatusOK, SearchEnvelope{
		Pagination: Pagination{Total: total, Limit: limit, Offset: offset},
		Records:    records,
	})
}

// Operations writes a `{operations}` envelope for bulk write endpoints.
func Operations(writer http.ResponseWriter, operations interface{}) {
	JSON(writer, http.StatusOK, OperationsEnvelope{Operations: operations})
}

// NoContent writes a 204 No Content response.
func NoContent(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNoContent)
}

// # Error Handling

// Error converts any Go error into a standardized JSON API error response.
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	var appError *apperr.AppError

	// If the error is not already an [apperr.AppError], wrap it as an Internal Server Error
	if !errors.As(err, &appError) {
		logger := getLoggerFromContext(request)
		logger.ErrorContext(request.Context(), "unhandled_error_swallowed",
			slog.String("error", err.Error()),
			slog.String("request_id", getRequestIDFromContext(request)),
		)

		appError = apperr.Internal(err)
	}

	// Always log 5xx errors as they indicate server-side failures that need attention
	if appError.HTTPStatus >= 500 {
		logger := getLoggerFromContext(request)
		logger.ErrorContext(request.Context(), "api_server_error",
			slog.String("code", appError.Code),
			slog.String("request_id", getRequestIDFromContext(request)),
			slog.Any("cause", appError.Cause),
		)
	}

	JSON(writer, appError.HTTPStatus, ErrorEnvelope{
		Error:   appError.Message,
		Code:    appError.Code,
		Details: appError.Details,
	})
}

// getLoggerFromContext extracts the per-request logger.
func getLoggerFromContext(request *http.Request) *slog.Logger {
	if logger, ok := request.Context().Value(ctxkey.KeyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// getRequestIDFromContext extracts the X-Request-ID for log correlation.
func getRequestIDFromContext(request *http.Request) string {
	if id, ok := request.Context().Value(ctxkey.KeyRequestID).(string); ok {
		return id
	}
	return ""
}
