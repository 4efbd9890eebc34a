// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package stream implements the process-wide, in-memory publisher over record
lifecycle events: a single hub fanning events out to per-connection SSE and
websocket dispatchers.

Subscription returns an unsubscribe handle; subscriber counts are gauged by
transport. Events are assigned a monotonic numeric id at emission time so a
single emitter preserves delivery order within each subscriber — rate
limiting may delay a dispatcher but never reorders its queue.
*/
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/apphub/metastore/internal/record"
)

// Envelope is one emitted lifecycle event, tagged with its monotonic id.
type Envelope struct {
	ID    uint64
	Event record.StreamEvent
}

// Transport names the two delivery mechanisms subscriber counts are gauged by.
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebsocket Transport = "websocket"
)

// Unsubscribe removes a subscription from the hub.
type Unsubscribe func()

// subscriber is one registered dispatcher's inbound channel.
type subscriber struct {
	id        uint64
	transport Transport
	deliver   func(Envelope)
}

// Metrics is the subset of gauge operations the hub needs; implemented by
// internal/platform/metrics so the hub never imports Prometheus directly.
type Metrics interface {
	SetStreamSubscribers(transport string, count int)
}

// Hub is a single process-wide publisher. It implements [record.StreamPublisher].
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextSubID   uint64
	nextEventID uint64
	metrics     Metrics
}

// NewHub constructs an empty hub. metrics may be nil, in which case
// subscriber-count gauges are skipped.
func NewHub(metrics Metrics) *Hub {
	return &Hub{subscribers: make(map[uint64]*subscriber), metrics: metrics}
}

// Subscribe registers deliver to receive every event published hereafter,
// returning an unsubscribe handle.
func (h *Hub) Subscribe(transport Transport, deliver func(Envelope)) Unsubscribe {
	h.mu.Lock()
	id := h.nextSubID
	h.nextSubID++
	h.subscribers[id] = &subscriber{id: id, transport: transport, deliver: deliver}
	h.mu.Unlock()

	h.reportCounts()

	return func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
		h.reportCounts()
	}
}

// Publish implements [record.StreamPublisher]. It assigns the next
// monotonic event id and fans the envelope out to every current subscriber.
// Emission is serialised through the hub's lock: delivery to every
// subscriber happens while the lock is held, so two concurrent Publish
// calls can never interleave their delivery loops and subscribers always
// observe events in the order Publish was called in. Every subscriber's
// deliver closure is non-blocking (bounded queue, drops on overflow), so
// holding the lock across delivery never stalls on a slow consumer.
func (h *Hub) Publish(event record.StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := atomic.AddUint64(&h.nextEventID, 1)
	envelope := Envelope{ID: id, Event: event}
	for _, sub := range h.subscribers {
		sub.deliver(envelope)
	}
}

func (h *Hub) reportCounts() {
	if h.metrics == nil {
		return
	}
	h.mu.Lock()
	sse, ws := 0, 0
	for _, sub := range h.subscribers {
		switch sub.transport {
		case TransportSSE:
			sse++
		case TransportWebsocket:
			ws++
		}
	}
	total := sse + ws
	h.mu.Unlock()

	h.metrics.SetStreamSubscribers(string(TransportSSE), sse)
	h.metrics.SetStreamSubscribers(string(TransportWebsocket), ws)
	h.metrics.SetStreamSubscribers("total", total)
}
