package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/apphub/metastore/internal/platform/constants"
	"github.com/apphub/metastore/internal/record"
)

func TestHub_PublishDeliversToAllSubscribers(t *testing.T) {
	hub := NewHub(nil)

	var mu sync.Mutex
	var received []Envelope
	unsubscribe := hub.Subscribe(TransportSSE, func(e Envelope) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})
	defer unsubscribe()

	hub.Publish(record.StreamEvent{Action: record.ActionCreate, Namespace: "ns", Key: "k", Version: 1})

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 1)
	assert.Equal(t, uint64(1), received[0].ID)
	assert.Equal(t, "ns", received[0].Event.Namespace)
}

func TestHub_EventIDsAreMonotonic(t *testing.T) {
	hub := NewHub(nil)
	var mu sync.Mutex
	var ids []uint64
	unsubscribe := hub.Subscribe(TransportWebsocket, func(e Envelope) {
		mu.Lock()
		ids = append(ids, e.ID)
		mu.Unlock()
	})
	defer unsubscribe()

	for i := 0; i < 5; i++ {
		hub.Publish(record.StreamEvent{Action: record.ActionUpdate, Namespace: "ns", Key: "k", Version: i})
	}

	mu.Lock()
	defer mu.Unlock()
	for i, id := range ids {
		assert.Equal(t, uint64(i+1), id)
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	var mu sync.Mutex
	count := 0
	unsubscribe := hub.Subscribe(TransportSSE, func(e Envelope) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	hub.Publish(record.StreamEvent{Action: record.ActionCreate, Namespace: "ns", Key: "a"})
	unsubscribe()
	hub.Publish(record.StreamEvent{Action: record.ActionCreate, Namespace: "ns", Key: "b"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeMetrics) SetStreamSubscribers(transport string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[transport] = count
}

func TestHub_ReportsSubscriberCountsByTransport(t *testing.T) {
	metrics := &fakeMetrics{}
	hub := NewHub(metrics)

	unsubSSE := hub.Subscribe(TransportSSE, func(Envelope) {})
	unsubWS := hub.Subscribe(TransportWebsocket, func(Envelope) {})
	defer unsubSSE()
	defer unsubWS()

	metrics.mu.Lock()
	assert.Equal(t, 1, metrics.counts["sse"])
	assert.Equal(t, 1, metrics.counts["websocket"])
	assert.Equal(t, 2, metrics.counts["total"])
	metrics.mu.Unlock()
}

func TestSSEDispatcher_OverflowTrimsOldestAndRecordsCount(t *testing.T) {
	d := newSSEDispatcher()
	for i := 0; i < constants.SSEQueueCapacity+10; i++ {
		d.enqueue(Envelope{ID: uint64(i)})
	}
	d.mu.Lock()
	assert.Equal(t, constants.SSEQueueCapacity, len(d.queue))
	assert.Equal(t, 10, d.trimmed)
	assert.Equal(t, uint64(10), d.queue[0].ID)
	d.mu.Unlock()
}

func TestSSEDispatcher_PopReturnsTrimNoticeBeforeData(t *testing.T) {
	d := newSSEDispatcher()
	for i := 0; i < constants.SSEQueueCapacity+3; i++ {
		d.enqueue(Envelope{ID: uint64(i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, trimmed, ok, err := d.pop(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, trimmed)
}
