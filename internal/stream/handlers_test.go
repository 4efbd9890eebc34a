package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/platform/ctxutil"
)

func TestHandlers_Serve_RejectsUnauthenticated(t *testing.T) {
	h := NewHandlers(NewHub(nil))
	req := httptest.NewRequest(http.MethodGet, "/stream/records", nil)
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlers_Serve_RejectsMissingReadScope(t *testing.T) {
	h := NewHandlers(NewHub(nil))
	claims := &identity.Claims{Subject: "svc", Scopes: map[identity.Scope]bool{}}
	ctx := ctxutil.WithIdentity(context.Background(), claims)
	req := httptest.NewRequest(http.MethodGet, "/stream/records", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIsWebsocketUpgrade_DetectsUpgradeHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stream/records", nil)
	req.Header.Set("Upgrade", "websocket")
	assert.True(t, isWebsocketUpgrade(req))

	plain := httptest.NewRequest(http.MethodGet, "/stream/records", nil)
	assert.False(t, isWebsocketUpgrade(plain))
}
