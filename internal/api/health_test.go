package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/metastore/internal/filestore"
	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/platform/ctxutil"
	"github.com/apphub/metastore/internal/record"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthHandlers_LivenessAlwaysOK(t *testing.T) {
	liveness, _ := NewHealthHandlers(HealthDependencies{}, discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	liveness(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandlers_ReadinessOKWhenDependenciesHealthy(t *testing.T) {
	_, readiness := NewHealthHandlers(HealthDependencies{
		CheckDatabase: func() error { return nil },
		CheckCache:    func() error { return nil },
	}, discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	readiness(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandlers_ReadinessDegradedWhenDependencyFails(t *testing.T) {
	_, readiness := NewHealthHandlers(HealthDependencies{
		CheckDatabase: func() error { return errors.New("boom") },
		CheckCache:    func() error { return nil },
	}, discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	readiness(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFilestoreHealthHandler_RejectsUnauthenticated(t *testing.T) {
	consumer := filestore.NewConsumer(&record.Service{}, filestore.Config{Enabled: true, StallThreshold: 30 * time.Second}, discardLogger(), true)
	handler := FilestoreHealthHandler(consumer)
	req := httptest.NewRequest(http.MethodGet, "/filestore/health", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFilestoreHealthHandler_ReportsOKWhenInline(t *testing.T) {
	consumer := filestore.NewConsumer(&record.Service{}, filestore.Config{Enabled: true, StallThreshold: 30 * time.Second}, discardLogger(), true)
	handler := FilestoreHealthHandler(consumer)

	claims := &identity.Claims{Subject: "svc", Scopes: map[identity.Scope]bool{identity.ScopeRead: true}}
	ctx := ctxutil.WithIdentity(context.Background(), claims)
	req := httptest.NewRequest(http.MethodGet, "/filestore/health", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
