// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package searchpreset resolves named, server-configured search filters that a
caller may reference by name instead of repeating a structured filter tree
on every request. Presets are loaded once at startup from an inline JSON
array or a file path — the same two-source shape [github.com/apphub/metastore/internal/identity]
uses for its token table — and may additionally gate access behind scopes
beyond the read scope record search already requires.
*/
package searchpreset

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/apphub/metastore/internal/filter"
	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/platform/apperr"
)

// presetRecord is the on-disk/env JSON shape for a single configured preset.
type presetRecord struct {
	Name           string   `json:"name"`
	Filter         any      `json:"filter"`
	RequiredScopes []string `json:"requiredScopes"`
}

// Preset is a resolved, ready-to-merge named filter.
type Preset struct {
	Name           string
	Node           *filter.Node
	RequiredScopes []identity.Scope
}

// Registry is a process-wide, read-only lookup table of named presets.
type Registry struct {
	presets map[string]Preset
}

// Load parses presets from inline JSON (taking precedence) or a file path.
// An empty registry (no presets configured) is valid.
func Load(inlineJSON, path string) (*Registry, error) {
	raw := inlineJSON
	if raw == "" && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("searchpreset: failed to read presets file: %w", err)
		}
		raw = string(data)
	}
	if raw == "" {
		return &Registry{presets: map[string]Preset{}}, nil
	}

	var records []presetRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("searchpreset: failed to parse preset records: %w", err)
	}

	presets := make(map[string]Preset, len(records))
	for _, rec := range records {
		if rec.Name == "" {
			return nil, fmt.Errorf("searchpreset: preset record missing name")
		}
		node, err := filter.ParseStructured(rec.Filter)
		if err != nil {
			return nil, fmt.Errorf("searchpreset: preset %q has an invalid filter: %w", rec.Name, err)
		}
		scopes := make([]identity.Scope, 0, len(rec.RequiredScopes))
		for _, s := range rec.RequiredScopes {
			scopes = append(scopes, identity.Scope(s))
		}
		presets[rec.Name] = Preset{Name: rec.Name, Node: node, RequiredScopes: scopes}
	}
	return &Registry{presets: presets}, nil
}

// Get resolves name to its preset, returning apperr.NotFound when unknown.
func (r *Registry) Get(name string) (Preset, error) {
	if r == nil {
		return Preset{}, apperr.NotFound("search preset")
	}
	preset, ok := r.presets[name]
	if !ok {
		return Preset{}, apperr.NotFound("search preset")
	}
	return preset, nil
}
