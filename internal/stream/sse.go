// Copyright (c) 2026 Apphub. All rights reserved.

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/apphub/metastore/internal/platform/constants"
)

// sseDispatcher serialises one SSE connection's outbound frame queue behind
// a bounded FIFO plus a token bucket. Overflow trims the oldest queued
// frames and records the trimmed count; the next available token first
// flushes a `rate_limited N events trimmed` comment frame before resuming
// data frames, so the drop notice always precedes later data.
type sseDispatcher struct {
	mu      sync.Mutex
	queue   []Envelope
	trimmed int
	limiter *rate.Limiter
	wake    chan struct{}
}

func newSSEDispatcher() *sseDispatcher {
	return &sseDispatcher{
		limiter: rate.NewLimiter(rate.Limit(constants.SSETokenBucketCapacity), constants.SSETokenBucketCapacity),
		wake:    make(chan struct{}, 1),
	}
}

func (d *sseDispatcher) enqueue(e Envelope) {
	d.mu.Lock()
	d.queue = append(d.queue, e)
	if len(d.queue) > constants.SSEQueueCapacity {
		overflow := len(d.queue) - constants.SSEQueueCapacity
		d.queue = d.queue[overflow:]
		d.trimmed += overflow
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// pop waits for the next token and returns the oldest queued frame, along
// with a pending trim-notice count to emit first (reset to zero once read).
func (d *sseDispatcher) pop(ctx context.Context) (env Envelope, trimmed int, ok bool, err error) {
	for {
		d.mu.Lock()
		if d.trimmed > 0 {
			trimmed = d.trimmed
			d.trimmed = 0
			d.mu.Unlock()
			if waitErr := d.limiter.Wait(ctx); waitErr != nil {
				return Envelope{}, 0, false, waitErr
			}
			return Envelope{}, trimmed, false, nil
		}
		if len(d.queue) > 0 {
			env = d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()
			if waitErr := d.limiter.Wait(ctx); waitErr != nil {
				return Envelope{}, 0, false, waitErr
			}
			return env, 0, true, nil
		}
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return Envelope{}, 0, false, ctx.Err()
		case <-d.wake:
		case <-time.After(constants.SSEHeartbeatInterval):
			return Envelope{}, 0, false, nil
		}
	}
}

// ServeSSE writes the server-sent-events stream for one connection until
// the client disconnects or writing fails. The caller is responsible for
// authorisation before invoking this.
func ServeSSE(w http.ResponseWriter, r *http.Request, hub *Hub) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("stream: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry: %d\n\n", constants.SSERetryMillis)
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	dispatcher := newSSEDispatcher()
	unsubscribe := hub.Subscribe(TransportSSE, dispatcher.enqueue)
	defer unsubscribe()

	ctx := r.Context()

	for {
		env, trimmed, ok, err := dispatcher.pop(ctx)
		if err != nil {
			return err
		}
		if trimmed > 0 {
			if _, werr := fmt.Fprintf(w, ": rate_limited %d events trimmed\n\n", trimmed); werr != nil {
				return werr
			}
			flusher.Flush()
			continue
		}
		if !ok {
			if _, werr := fmt.Fprintf(w, ":ping\n\n"); werr != nil {
				return werr
			}
			flusher.Flush()
			continue
		}

		payload, err := json.Marshal(env.Event)
		if err != nil {
			continue
		}
		if _, werr := fmt.Fprintf(w, "event: metastore.record.%s\nid: %d\ndata: %s\n\n", env.Event.Action, env.ID, payload); werr != nil {
			return werr
		}
		flusher.Flush()
	}
}
