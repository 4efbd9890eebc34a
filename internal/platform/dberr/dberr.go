// Copyright (c) 2026 Apphub. All rights reserved.

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/apphub/metastore/internal/platform/apperr"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("resource")
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// resource names the entity being acted on (e.g. "record", "schema"), used to
// build the not_found message; it is ignored for other error classes.
func Wrap(err error, resource string) error {
	if err == nil {
		return nil
	}
	if apperr.IsAppError(err) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			// A concurrent create/upsert lost the race on the (namespace, key)
			// uniqueness constraint; the caller should retry as an update.
			return apperr.VersionConflict("record was modified concurrently")
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return apperr.VersionConflict("concurrent update conflict, retry")
		}
	}

	return apperr.Internal(err)
}
