// Copyright (c) 2026 Apphub. All rights reserved.

package stream

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/apphub/metastore/internal/platform/constants"
)

// wsEnvelope is the JSON shape written to every websocket subscriber.
type wsEnvelope struct {
	Type string `json:"type"`
	ID   uint64 `json:"id,omitempty"`
	Data any    `json:"data"`
}

type wsAckData struct {
	OccurredAt time.Time `json:"occurredAt"`
}

// closeForbidden is the close code used when authorisation fails after the
// websocket upgrade has already happened (the only point at which a
// forbidden subscriber can be rejected on this transport).
const closeForbidden websocket.StatusCode = 4403

// ServeWebsocket upgrades the connection and streams lifecycle events as
// JSON envelopes until the client disconnects. authorised is evaluated
// after upgrade (the HTTP-level scope check happens before calling this);
// when false the connection is closed immediately with code 4403.
func ServeWebsocket(w http.ResponseWriter, r *http.Request, hub *Hub, authorised bool) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	ctx := r.Context()

	if !authorised {
		return conn.Close(closeForbidden, "forbidden")
	}

	if err := wsjson.Write(ctx, conn, wsEnvelope{Type: "connection.ack", Data: wsAckData{OccurredAt: time.Now()}}); err != nil {
		return err
	}

	events := make(chan Envelope, constants.SSEQueueCapacity)
	unsubscribe := hub.Subscribe(TransportWebsocket, func(e Envelope) {
		select {
		case events <- e:
		default:
			// Drop the oldest queued event to make room, matching the SSE
			// dispatcher's overflow-trims-oldest behaviour.
			select {
			case <-events:
			default:
			}
			select {
			case events <- e:
			default:
			}
		}
	})
	defer unsubscribe()

	heartbeat := time.NewTicker(constants.SSEHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case env := <-events:
			envelope := wsEnvelope{Type: "metastore.record." + string(env.Event.Action), ID: env.ID, Data: env.Event}
			if err := wsjson.Write(ctx, conn, envelope); err != nil {
				return err
			}
		}
	}
}
