// Copyright (c) 2026 Apphub. All rights reserved.

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// HTTP handlers use this package to check request input before it reaches the
// service layer and storage, so business logic only operates on semantically valid data.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/apphub/metastore/internal/platform/apperr"
)

var (
	// namespaceRegex matches the record namespace format: alphanumeric,
	// `:`, `_`, `-`, starting with an alphanumeric character.
	namespaceRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9:_-]*$`)
	// uuidRegex matches a UUIDv4 or UUIDv7 string.
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.BadRequest("invalid JSON payload")
)

const (
	// MaxNamespaceLen is the maximum length of a namespace string.
	MaxNamespaceLen = 128
	// MaxKeyLen is the maximum length of a record key string.
	MaxKeyLen = 256
	// MaxTagCount is the maximum number of tags a record may carry.
	MaxTagCount = 128
	// MinSchemaHashLen is the minimum length of a non-empty schemaHash.
	MinSchemaHashLen = 6
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "this field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("minimum %d characters", min))
	}
	return v
}

// Range fails if the value is outside the [min, max] range (inclusive).
func (v *Validator) Range(field string, value, min, max int) *Validator {
	if value < min || value > max {
		v.add(field, fmt.Sprintf("must be between %d and %d", min, max))
	}
	return v
}

// Email fails if the value is not a valid RFC 5322 email address.
func (v *Validator) Email(field, value string) *Validator {
	if _, err := mail.ParseAddress(value); err != nil {
		v.add(field, "must be a valid email address")
	}
	return v
}

// Namespace fails if the value is not a valid record namespace: starts with
// an alphanumeric character, contains only alphanumerics plus `:`, `_`, `-`,
// and is at most [MaxNamespaceLen] characters.
func (v *Validator) Namespace(field, value string) *Validator {
	if !namespaceRegex.MatchString(value) {
		v.add(field, "must start with a letter or digit and contain only letters, digits, ':', '_', '-'")
		return v
	}
	return v.MaxLen(field, value, MaxNamespaceLen)
}

// Key fails if the value is empty or longer than [MaxKeyLen].
func (v *Validator) Key(field, value string) *Validator {
	v.Required(field, value)
	return v.MaxLen(field, value, MaxKeyLen)
}

// SchemaHash fails if a non-empty value is shorter than [MinSchemaHashLen].
// An empty value is valid (schemaHash is optional).
func (v *Validator) SchemaHash(field, value string) *Validator {
	if value == "" {
		return v
	}
	if utf8.RuneCountInString(value) < MinSchemaHashLen {
		v.add(field, fmt.Sprintf("must be at least %d characters when set", MinSchemaHashLen))
	}
	return v
}

// Tags fails if there are more than [MaxTagCount] entries, or any entry is
// empty after trimming. Callers are expected to have already trimmed and
// deduplicated the set; this only validates the resulting invariants.
func (v *Validator) Tags(field string, tags []string) *Validator {
	if len(tags) > MaxTagCount {
		v.add(field, fmt.Sprintf("must contain at most %d entries", MaxTagCount))
	}
	for _, t := range tags {
		if strings.TrimSpace(t) == "" {
			v.add(field, "must not contain empty tags")
			break
		}
	}
	return v
}

// UUID fails if the value is not a valid UUID string (case-insensitive).
func (v *Validator) UUID(field, value string) *Validator {
	lower := strings.ToLower(value)
	if !uuidRegex.MatchString(lower) {
		v.add(field, "must be a valid UUID")
	}
	return v
}

// OneOf fails if the value is not in the allowed set of strings.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("limit", limit < 1 || limit > 200, "must be between 1 and 200")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns an [apperr.AppError] (bad_request) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method — call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.BadRequest("validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.BadRequest("validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}
