// Copyright (c) 2026 Apphub. All rights reserved.

package ctxutil_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/platform/ctxutil"
)

func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id"

	assert.Empty(t, ctxutil.GetRequestID(ctx))

	ctx = ctxutil.WithRequestID(ctx, requestID)
	assert.Equal(t, requestID, ctxutil.GetRequestID(ctx))
}

func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}

func TestContext_Identity(t *testing.T) {
	ctx := context.Background()
	claims := &identity.Claims{
		Subject: "svc-123",
		Kind:    identity.KindService,
	}

	assert.Nil(t, ctxutil.GetIdentity(ctx))

	ctx = ctxutil.WithIdentity(ctx, claims)
	retrieved := ctxutil.GetIdentity(ctx)

	assert.NotNil(t, retrieved)
	assert.Equal(t, "svc-123", retrieved.Subject)
	assert.Equal(t, identity.KindService, retrieved.Kind)
}
