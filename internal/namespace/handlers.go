// Copyright (c) 2026 Apphub. All rights reserved.

package namespace

import (
	"net/http"

	"github.com/apphub/metastore/internal/identity"
	requestutil "github.com/apphub/metastore/internal/platform/request"
	"github.com/apphub/metastore/internal/platform/respond"
	"github.com/apphub/metastore/pkg/convert"
)

// Handlers wires the HTTP surface for /namespaces onto a Service.
type Handlers struct {
	service *Service
}

// NewHandlers constructs the namespace HTTP handler set.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// List handles GET /namespaces.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	claims, err := requestutil.RequireScope(r, identity.ScopeRead)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	scope := Scope{Wildcard: claims.Wildcard, Namespaces: claims.Namespaces}
	prefix := r.URL.Query().Get("prefix")
	limit := clamp(convert.ToIntD(r.URL.Query().Get("limit"), 50), 1, 200, 50)
	offset := convert.ToIntD(r.URL.Query().Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	result, err := h.service.List(r.Context(), ListRequest{Scope: scope, Prefix: prefix, Limit: limit, Offset: offset})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Search(w, result.Namespaces, result.Total, limit, offset)
}

func clamp(value, min, max, fallback int) int {
	if value <= 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
