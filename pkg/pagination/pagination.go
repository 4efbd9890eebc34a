// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package pagination provides standardized limit/offset parsing for
collection-based APIs.

It handles parsing and clamping "limit" and "offset" query parameters per
spec.md §4.A (limit ∈ [1,200] default 50, offset ≥ 0 default 0).

Usage:

	params := pagination.FromRequest(request)
	...
	respond.Search(writer, records, total, params.Limit, params.Offset)

No handler in this module imports it; the record handlers parse limit and
offset themselves.
*/
package pagination

import (
	"net/http"

	"github.com/apphub/metastore/pkg/convert"
)

// # Common Defaults

const (
	// DefaultLimit is applied when "limit" is absent or invalid.
	DefaultLimit = 50

	// MaxLimit is the upper bound accepted for "limit".
	MaxLimit = 200

	// DefaultOffset is applied when "offset" is absent or invalid.
	DefaultOffset = 0
)

// # Request Parameters

// Params holds the parsed, clamped limit/offset from a request's query string.
type Params struct {
	Limit  int
	Offset int
}

// FromRequest parses "limit" and "offset" query parameters from an HTTP
// request, clamping limit to [1, MaxLimit] and offset to a minimum of 0.
func FromRequest(request *http.Request) Params {
	limit := convert.ToIntD(request.URL.Query().Get("limit"), DefaultLimit)
	offset := convert.ToIntD(request.URL.Query().Get("offset"), DefaultOffset)

	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = DefaultOffset
	}

	return Params{Limit: limit, Offset: offset}
}
