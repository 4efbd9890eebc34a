// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package schemareg is the schema definitions domain: named, versioned field
lists keyed by schemaHash, persisted in PostgreSQL. The Store is the backing
loader for the schema registry cache (internal/schemacache), through which
GET /schemas/{hash} serves definitions.
*/
package schemareg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/apphub/metastore/internal/platform/database/schema"
	"github.com/apphub/metastore/internal/platform/dberr"
)

// Field describes one field of a schema definition.
type Field struct {
	Path     string `json:"path"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Indexed  bool   `json:"indexed"`
	Hint     string `json:"hint,omitempty"`
}

// Definition is a named, versioned schema, keyed by its content hash.
type Definition struct {
	SchemaHash  string         `json:"schemaHash"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     int            `json:"version"`
	Fields      []Field        `json:"fields"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Store persists schema definitions in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL-backed schema definition store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get looks up a definition by schemaHash.
func (s *Store) Get(ctx context.Context, schemaHash string) (Definition, error) {
	t := schema.SchemaDefinitions
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, strings.Join(t.Columns(), ", "), t.Table, t.SchemaHash)
	row := s.pool.QueryRow(ctx, query, schemaHash)

	var def Definition
	var fieldsRaw, metaRaw []byte
	err := row.Scan(&def.SchemaHash, &def.Name, &def.Description, &def.Version, &fieldsRaw, &metaRaw, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Definition{}, apperr.NotFound("schema definition")
		}
		return Definition{}, dberr.Wrap(err, "schema")
	}
	if err := json.Unmarshal(fieldsRaw, &def.Fields); err != nil {
		return Definition{}, apperr.Internal(fmt.Errorf("schemareg: decode fields: %w", err))
	}
	if err := json.Unmarshal(metaRaw, &def.Metadata); err != nil {
		return Definition{}, apperr.Internal(fmt.Errorf("schemareg: decode metadata: %w", err))
	}
	return def, nil
}

// Upsert idempotently stores def, keyed by SchemaHash: a second call with
// the same hash overwrites the previous definition.
func (s *Store) Upsert(ctx context.Context, def Definition) (Definition, error) {
	t := schema.SchemaDefinitions
	fieldsJSON, err := json.Marshal(def.Fields)
	if err != nil {
		return Definition{}, apperr.BadRequest("invalid fields payload")
	}
	metaJSON, err := json.Marshal(def.Metadata)
	if err != nil {
		return Definition{}, apperr.BadRequest("invalid metadata payload")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (%s) DO UPDATE SET
			%s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s,
			%s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = NOW()
		RETURNING %s`,
		t.Table, t.SchemaHash, t.Name, t.Description, t.Version, t.Fields, t.Metadata, t.CreatedAt, t.UpdatedAt,
		t.SchemaHash,
		t.Name, t.Name, t.Description, t.Description, t.Version, t.Version,
		t.Fields, t.Fields, t.Metadata, t.Metadata, t.UpdatedAt,
		strings.Join(t.Columns(), ", "),
	)
	row := s.pool.QueryRow(ctx, query, def.SchemaHash, def.Name, def.Description, def.Version, fieldsJSON, metaJSON)

	var out Definition
	var fieldsRaw, metaRaw []byte
	if err := row.Scan(&out.SchemaHash, &out.Name, &out.Description, &out.Version, &fieldsRaw, &metaRaw, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return Definition{}, dberr.Wrap(err, "schema")
	}
	if err := json.Unmarshal(fieldsRaw, &out.Fields); err != nil {
		return Definition{}, apperr.Internal(err)
	}
	if err := json.Unmarshal(metaRaw, &out.Metadata); err != nil {
		return Definition{}, apperr.Internal(err)
	}
	return out, nil
}
