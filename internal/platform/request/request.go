// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/apphub/metastore/internal/platform/ctxutil"
	"github.com/apphub/metastore/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Identity extracts the authenticated caller's claims from the request context.

Returns nil if the request is not authenticated.
*/
func Identity(request *http.Request) *identity.Claims {
	return ctxutil.GetIdentity(request.Context())
}

/*
RequiredIdentity ensures the request is authenticated and returns the caller's
claims.

Returns:
  - *identity.Claims: The authenticated caller claims
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredIdentity(request *http.Request) (*identity.Claims, error) {
	claims := ctxutil.GetIdentity(request.Context())
	if claims == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	return claims, nil
}

/*
RequireScope ensures the request's caller holds scope, returning the claims
on success.

Returns:
  - *identity.Claims: The authenticated caller claims
  - error: apperr.Unauthorized if unauthenticated, apperr.Forbidden if the
    scope is missing
*/
func RequireScope(request *http.Request, scope identity.Scope) (*identity.Claims, error) {
	claims, err := RequiredIdentity(request)
	if err != nil {
		return nil, err
	}
	if !claims.HasScope(scope) {
		return nil, apperr.Forbidden("missing required scope: " + string(scope))
	}
	return claims, nil
}

/*
RequireNamespaceAccess ensures the request's caller holds scope and may
access namespace, returning the claims on success.
*/
func RequireNamespaceAccess(request *http.Request, scope identity.Scope, namespace string) (*identity.Claims, error) {
	claims, err := RequireScope(request, scope)
	if err != nil {
		return nil, err
	}
	if !claims.CanAccessNamespace(namespace) {
		return nil, apperr.Forbidden("namespace not permitted for this token")
	}
	return claims, nil
}
