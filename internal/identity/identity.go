// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package identity resolves bearer tokens to caller identity.

It is deliberately the simplest thing that could satisfy spec.md §3's "Token
identity" model: a process-wide, atomically-replaceable map from opaque
bearer token to a subject, kind, scope set and namespace allow-list. There is
no token issuance, no signature verification, and no expiry here — tokens
are pre-shared secrets configured out of band (environment variable or file)
and looked up by exact match. This mirrors the "bearer-token parsing" being
an external collaborator per spec.md §1: the wire-level `Authorization:
Bearer <token>` parsing lives in [github.com/apphub/metastore/internal/platform/middleware],
this package only owns the token -> identity mapping.

# Scopes

Four scopes exist: read, write, delete, admin. admin implies all others;
[Claims.HasScope] encodes that implication so callers never need to special
case it.
*/
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// Scope is one of the four metastore authorization scopes.
type Scope string

const (
	ScopeRead   Scope = "metastore:read"
	ScopeWrite  Scope = "metastore:write"
	ScopeDelete Scope = "metastore:delete"
	ScopeAdmin  Scope = "metastore:admin"
)

// Kind distinguishes human callers from service-to-service callers.
type Kind string

const (
	KindUser    Kind = "user"
	KindService Kind = "service"
)

// Claims is the resolved identity of an authenticated caller.
type Claims struct {
	Subject    string
	Kind       Kind
	Scopes     map[Scope]bool
	Namespaces []string // nil/empty + Wildcard == "*"
	Wildcard   bool
}

// HasScope reports whether the caller holds scope, with admin implying all.
func (c *Claims) HasScope(scope Scope) bool {
	if c == nil {
		return false
	}
	if c.Scopes[ScopeAdmin] {
		return true
	}
	return c.Scopes[scope]
}

// CanAccessNamespace reports whether the caller may operate on the
// (already-lowercased) target namespace.
func (c *Claims) CanAccessNamespace(namespace string) bool {
	if c == nil {
		return false
	}
	if c.Wildcard {
		return true
	}
	target := strings.ToLower(namespace)
	for _, ns := range c.Namespaces {
		if strings.ToLower(ns) == target {
			return true
		}
	}
	return false
}

// tokenRecord is the on-disk/env JSON shape for a single configured token.
type tokenRecord struct {
	Token      string   `json:"token"`
	Subject    string   `json:"subject"`
	Kind       string   `json:"kind"`
	Scopes     []string `json:"scopes"`
	Namespaces []string `json:"namespaces"`
}

// Index is a process-wide, concurrency-safe bearer-token lookup table.
//
// # Concurrency
//
// The active table is held behind an [atomic.Pointer] so lookups never
// block on a reload; [Index.Reload] builds a brand-new table and swaps it
// in atomically, matching spec.md §5's "Token index: replaced atomically on
// reload; readers never block."
type Index struct {
	table atomic.Pointer[map[string]*Claims]
	// source describes where to reload from.
	inlineJSON string
	path       string
}

// NewIndex constructs an Index from either an inline JSON array of token
// records or a path to a file containing one; inlineJSON takes precedence
// when both are non-empty. An empty index (no tokens configured) is valid
// and simply authenticates nothing.
func NewIndex(inlineJSON, path string) (*Index, error) {
	idx := &Index{inlineJSON: inlineJSON, path: path}
	if err := idx.Reload(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Disabled returns an Index that resolves every token to a synthetic
// "local-dev" admin identity, for APPHUB_AUTH_DISABLED=true.
func Disabled() *Index {
	idx := &Index{}
	table := map[string]*Claims{
		"": {
			Subject:  "local-dev",
			Kind:     KindUser,
			Scopes:   map[Scope]bool{ScopeRead: true, ScopeWrite: true, ScopeDelete: true, ScopeAdmin: true},
			Wildcard: true,
		},
	}
	idx.table.Store(&table)
	return idx
}

// Reload re-reads the configured source and atomically replaces the active
// token table. A malformed source leaves the previously active table intact
// and returns an error.
func (idx *Index) Reload() error {
	raw := idx.inlineJSON
	if raw == "" && idx.path != "" {
		data, err := os.ReadFile(idx.path)
		if err != nil {
			return fmt.Errorf("identity: failed to read token file: %w", err)
		}
		raw = string(data)
	}
	if raw == "" {
		empty := map[string]*Claims{}
		idx.table.Store(&empty)
		return nil
	}

	var records []tokenRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return fmt.Errorf("identity: failed to parse token records: %w", err)
	}

	table := make(map[string]*Claims, len(records))
	for _, rec := range records {
		if rec.Token == "" || rec.Subject == "" {
			return fmt.Errorf("identity: token record missing token or subject")
		}
		claims := &Claims{
			Subject: rec.Subject,
			Kind:    Kind(rec.Kind),
		}
		if claims.Kind == "" {
			claims.Kind = KindUser
		}
		claims.Scopes = make(map[Scope]bool, len(rec.Scopes))
		for _, s := range rec.Scopes {
			claims.Scopes[Scope(s)] = true
		}
		for _, ns := range rec.Namespaces {
			if ns == "*" {
				claims.Wildcard = true
				continue
			}
			claims.Namespaces = append(claims.Namespaces, ns)
		}
		table[rec.Token] = claims
	}

	idx.table.Store(&table)
	return nil
}

// Resolve looks up the claims for a bearer token. ok is false for an
// unrecognised token.
func (idx *Index) Resolve(token string) (*Claims, bool) {
	table := idx.table.Load()
	if table == nil {
		return nil, false
	}
	claims, ok := (*table)[token]
	if !ok {
		// Reload rejects empty tokens, so only a Disabled index has an
		// entry under "": there it answers for every token.
		claims, ok = (*table)[""]
	}
	return claims, ok
}
