// Copyright (c) 2026 Apphub. All rights reserved.

// Package middleware provides the HTTP middleware chain for the metastore API server.
//
// # Architecture
//
// Middleware intercepts incoming HTTP requests to apply global policies
// before they reach the domain handlers. This includes cross-cutting concerns
// like Logging, AuthZ/AuthN, Rate Limiting, and CORS.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/apphub/metastore/internal/platform/ctxkey"
	"github.com/apphub/metastore/internal/platform/respond"
)

// TokenResolver defines the interface needed to resolve bearer tokens to
// caller identity in middleware.
//
// # Why an interface?
//
// Defining TokenResolver here decouples the middleware from [identity.Index],
// allowing mocks to be injected during unit testing.
type TokenResolver interface {
	Resolve(token string) (*identity.Claims, bool)
}

// Authenticate extracts and resolves the bearer token from the Authorization
// header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, request proceeds as anonymous.
//  3. If present, resolve it via [TokenResolver].
//  4. Inject [*identity.Claims] into the request context for downstream use.
//
// # Parameters
//   - resolver: The TokenResolver instance.
//
// # Returns
//   - An [http.Handler] middleware.
func Authenticate(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get("Authorization")

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				respond.Error(writer, request, apperr.Unauthorized("invalid authorization format"))
				return
			}

			// ── 3. Token Resolution ────────────────────────────────────────────
			tokenStr := strings.TrimSpace(parts[1])
			claims, ok := resolver.Resolve(tokenStr)
			if !ok {
				respond.Error(writer, request, apperr.Unauthorized("unrecognised bearer token"))
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := context.WithValue(request.Context(), ctxkey.KeyIdentity, claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		claims := GetIdentity(request.Context())
		if claims == nil {
			respond.Error(writer, request, apperr.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireScope blocks requests whose caller lacks scope. It implies
// [RequireAuth] — mount it alone, directly after [Authenticate].
func RequireScope(scope identity.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := GetIdentity(request.Context())
			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized("authentication required"))
				return
			}
			if !claims.HasScope(scope) {
				respond.Error(writer, request, apperr.Forbidden("missing required scope: "+string(scope)))
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}

// RequireNamespaceParam blocks requests whose caller may not access the
// namespace found in the chi URL parameter named param (typically "ns").
// It implies [RequireScope] for scope and must be mounted after [Authenticate].
func RequireNamespaceParam(scope identity.Scope, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := GetIdentity(request.Context())
			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized("authentication required"))
				return
			}
			if !claims.HasScope(scope) {
				respond.Error(writer, request, apperr.Forbidden("missing required scope: "+string(scope)))
				return
			}
			namespace := chi.URLParam(request, param)
			if !claims.CanAccessNamespace(namespace) {
				respond.Error(writer, request, apperr.Forbidden("namespace not permitted for this token"))
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}

// GetIdentity retrieves the [*identity.Claims] from the [context.Context].
//
// # Returns
//   - A pointer to [*identity.Claims] if the caller is authenticated.
//   - nil if the caller is anonymous.
func GetIdentity(ctx context.Context) *identity.Claims {
	claims, ok := ctx.Value(ctxkey.KeyIdentity).(*identity.Claims)
	if !ok {
		return nil
	}
	return claims
}
