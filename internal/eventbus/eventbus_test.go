package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/apphub/metastore/internal/record"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestPublisher_ConnectFailureIsSwallowed(t *testing.T) {
	calls := 0
	p := New(func(ctx context.Context) (*redis.Client, error) {
		calls++
		return nil, errors.New("connection refused")
	}, "", discardLogger())

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), record.BusPayload{Namespace: "ns", Key: "k"})
	})
	assert.Equal(t, 1, calls)
}

func TestPublisher_RetriesConnectAfterFailure(t *testing.T) {
	calls := 0
	p := New(func(ctx context.Context) (*redis.Client, error) {
		calls++
		return nil, errors.New("still down")
	}, "custom-channel", discardLogger())

	p.Publish(context.Background(), record.BusPayload{Namespace: "ns", Key: "a"})
	p.Publish(context.Background(), record.BusPayload{Namespace: "ns", Key: "b"})

	assert.Equal(t, 2, calls, "a failed connect attempt does not cache a client, so each publish retries")
}

func TestPublisher_CloseWithoutConnectIsNoop(t *testing.T) {
	p := New(func(ctx context.Context) (*redis.Client, error) {
		return nil, errors.New("never called")
	}, "", discardLogger())
	assert.NoError(t, p.Close())
}
