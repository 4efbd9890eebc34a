// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package eventbus is a thin, best-effort wrapper around Redis Pub/Sub that
implements [record.BusPublisher]. Publishing never fails the request that
triggered it: a transport error is logged through the request logger and
swallowed. The client is constructed lazily on first publish and closed
on shutdown.
*/
package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/apphub/metastore/internal/platform/constants"
	"github.com/apphub/metastore/internal/record"
)

// Publisher is a best-effort durable event bus publisher.
type Publisher struct {
	mu      sync.Mutex
	client  *redis.Client
	connect func(ctx context.Context) (*redis.Client, error)
	logger  *slog.Logger
	channel string
}

// New constructs a publisher that lazily connects via connect on first
// Publish call. channel overrides [constants.RedisChannelEvents] when non-empty.
func New(connect func(ctx context.Context) (*redis.Client, error), channel string, logger *slog.Logger) *Publisher {
	if channel == "" {
		channel = constants.RedisChannelEvents
	}
	return &Publisher{connect: connect, channel: channel, logger: logger}
}

// Publish implements [record.BusPublisher]. Failures are logged, never
// returned or propagated to the caller.
func (p *Publisher) Publish(ctx context.Context, payload record.BusPayload) {
	client, err := p.clientFor(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "eventbus_connect_failed", slog.String("error", err.Error()))
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "eventbus_encode_failed", slog.String("error", err.Error()))
		return
	}

	if err := client.Publish(ctx, p.channel, body).Err(); err != nil {
		p.logger.ErrorContext(ctx, "eventbus_publish_failed",
			slog.String("error", err.Error()),
			slog.String("namespace", payload.Namespace),
			slog.String("key", payload.Key),
		)
	}
}

func (p *Publisher) clientFor(ctx context.Context) (*redis.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

// Close releases the underlying Redis client, if one was ever constructed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
