// Copyright (c) 2026 Apphub. All rights reserved.

package stream

import (
	"net/http"
	"strings"

	"github.com/apphub/metastore/internal/identity"
	requestutil "github.com/apphub/metastore/internal/platform/request"
	"github.com/apphub/metastore/internal/platform/respond"
)

// Handlers wires the HTTP surface for GET /stream/records onto a Hub.
// The endpoint negotiates transport by the Upgrade header alone: a
// websocket upgrade request is served over websocket, everything else
// falls back to server-sent events.
type Handlers struct {
	hub *Hub
}

// NewHandlers constructs the stream HTTP handler set.
func NewHandlers(hub *Hub) *Handlers {
	return &Handlers{hub: hub}
}

// Serve handles GET /stream/records.
func (h *Handlers) Serve(w http.ResponseWriter, r *http.Request) {
	if _, err := requestutil.RequireScope(r, identity.ScopeRead); err != nil {
		respond.Error(w, r, err)
		return
	}

	if isWebsocketUpgrade(r) {
		if err := ServeWebsocket(w, r, h.hub, true); err != nil {
			respond.Error(w, r, err)
		}
		return
	}

	if err := ServeSSE(w, r, h.hub); err != nil {
		respond.Error(w, r, err)
	}
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
