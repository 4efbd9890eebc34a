package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/namespace"
	"github.com/apphub/metastore/internal/platform/config"
	"github.com/apphub/metastore/internal/record"
	"github.com/apphub/metastore/internal/schemareg"
	"github.com/apphub/metastore/internal/stream"
)

func testHandlers() Handlers {
	liveness, readiness := NewHealthHandlers(HealthDependencies{}, discardLogger())
	return Handlers{
		Liveness:        liveness,
		Readiness:       readiness,
		FilestoreHealth: FilestoreHealthHandler(nil),
		Record:          record.NewHandlers(nil, nil),
		Namespace:       namespace.NewHandlers(nil),
		Stream:          stream.NewHandlers(nil),
		Schema:          schemareg.NewHandlers(nil, nil),
		ReloadTokens:    func(w http.ResponseWriter, r *http.Request) {},
	}
}

func routeSet(t *testing.T, router chi.Router) map[string]bool {
	t.Helper()
	routes := map[string]bool{}
	err := chi.Walk(router, func(method, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		routes[method+" "+route] = true
		return nil
	})
	require.NoError(t, err)
	return routes
}

func TestNewServer_RegistersExpectedRoutes(t *testing.T) {
	cfg := &config.Config{Host: "::", Port: "4100", Environment: "development"}
	idx := identity.Disabled()
	server := NewServer(context.Background(), cfg, discardLogger(), idx, testHandlers())

	routes := routeSet(t, server.router)

	expected := []string{
		"GET /healthz",
		"GET /readyz",
		"GET /filestore/health",
		"GET /metrics",
		"POST /records/",
		"POST /records/search",
		"POST /records/bulk",
		"GET /records/{ns}/{key}",
		"PUT /records/{ns}/{key}",
		"PATCH /records/{ns}/{key}",
		"DELETE /records/{ns}/{key}",
		"DELETE /records/{ns}/{key}/purge",
		"POST /records/{ns}/{key}/restore",
		"GET /records/{ns}/{key}/audit",
		"GET /records/{ns}/{key}/audit/{id}/diff",
		"GET /namespaces",
		"GET /stream/records",
		"GET /schemas/{hash}",
		"POST /admin/schemas",
		"POST /admin/tokens/reload",
	}
	for _, route := range expected {
		assert.True(t, routes[route], "expected route %q to be registered", route)
	}
}

func TestNewServer_BuildsWithoutError(t *testing.T) {
	cfg := &config.Config{Host: "127.0.0.1", Port: "0", Environment: "production"}
	idx := identity.Disabled()
	server := NewServer(context.Background(), cfg, discardLogger(), idx, testHandlers())
	assert.NotNil(t, server)
}
