// Copyright (c) 2026 Apphub. All rights reserved.

package schemareg

import (
	"context"
	"net/http"

	"github.com/apphub/metastore/internal/identity"
	requestutil "github.com/apphub/metastore/internal/platform/request"
	"github.com/apphub/metastore/internal/platform/respond"
	"github.com/apphub/metastore/internal/platform/validate"
)

// CacheReader is the read path a schema cache offers handlers: a
// cache-fronted lookup by schemaHash.
type CacheReader interface {
	Get(ctx context.Context, schemaHash string) (Definition, error)
}

// Handlers wires the HTTP surface for schema definitions.
type Handlers struct {
	store *Store
	cache CacheReader
}

// NewHandlers constructs schema registry handlers. store backs the admin
// write path; cache (typically *schemacache.Cache) backs the public read path.
func NewHandlers(store *Store, cache CacheReader) *Handlers {
	return &Handlers{store: store, cache: cache}
}

type fieldPayload struct {
	Path     string `json:"path"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Indexed  bool   `json:"indexed"`
	Hint     string `json:"hint"`
}

type schemaPayload struct {
	SchemaHash  string         `json:"schemaHash"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     int            `json:"version"`
	Fields      []fieldPayload `json:"fields"`
	Metadata    map[string]any `json:"metadata"`
}

// Get handles GET /schemas/{hash}, served from the cache.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	hash := requestutil.Param(r, "hash")
	if _, err := requestutil.RequireScope(r, identity.ScopeRead); err != nil {
		respond.Error(w, r, err)
		return
	}

	def, err := h.cache.Get(r.Context(), hash)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, def)
}

// RegisterOrUpdate handles POST /admin/schemas.
func (h *Handlers) RegisterOrUpdate(w http.ResponseWriter, r *http.Request) {
	if _, err := requestutil.RequireScope(r, identity.ScopeAdmin); err != nil {
		respond.Error(w, r, err)
		return
	}

	var payload schemaPayload
	if err := requestutil.DecodeJSON(r, &payload); err != nil {
		respond.Error(w, r, err)
		return
	}
	v := validate.Validator{}
	v.Required("schemaHash", payload.SchemaHash)
	v.Required("name", payload.Name)
	if v.HasErrors() {
		respond.Error(w, r, v.Err())
		return
	}
	if payload.Version == 0 {
		payload.Version = 1
	}

	fields := make([]Field, 0, len(payload.Fields))
	for _, f := range payload.Fields {
		fields = append(fields, Field(f))
	}

	def, err := h.store.Upsert(r.Context(), Definition{
		SchemaHash: payload.SchemaHash, Name: payload.Name, Description: payload.Description,
		Version: payload.Version, Fields: fields, Metadata: payload.Metadata,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, def)
}
