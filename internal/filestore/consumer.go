// Copyright (c) 2026 Apphub. All rights reserved.

package filestore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apphub/metastore/internal/jsonvalue"
	"github.com/apphub/metastore/internal/record"
)

// Consumer reconciles filestore lifecycle events into a dedicated namespace.
// All inbound events funnel through a single buffered channel drained by one
// goroutine, so handling is strictly sequential.
type Consumer struct {
	service   *record.Service
	namespace string
	actor     string
	logger    *slog.Logger
	health    *healthState

	queue chan Event
	done  chan struct{}
}

// Config is the subset of runtime configuration the consumer needs.
type Config struct {
	Enabled        bool
	Namespace      string
	StallThreshold time.Duration
	Actor          string
}

// NewConsumer constructs a consumer in disabled or enabled state per cfg.
// Callers drain its queue with Run and feed it either through
// RunRedisSubscription (redis transport) or directly via Ingest (inline
// transport), gated by AllowInlineMode at the caller.
func NewConsumer(service *record.Service, cfg Config, logger *slog.Logger, inline bool) *Consumer {
	return &Consumer{
		service:   service,
		namespace: cfg.Namespace,
		actor:     cfg.Actor,
		logger:    logger,
		health:    newHealthState(cfg.Enabled, inline, cfg.StallThreshold),
		queue:     make(chan Event, 1024),
		done:      make(chan struct{}),
	}
}

// Ingest enqueues one event for sequential processing. Used directly by
// inline/test-mode callers and by the Redis subscription loop.
func (c *Consumer) Ingest(e Event) {
	select {
	case c.queue <- e:
	case <-c.done:
	}
}

// Run drains the queue sequentially until ctx is cancelled. A processing
// failure is logged and counted, never skipping the next queued event.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(c.done)
			return
		case e := <-c.queue:
			if err := c.process(ctx, e); err != nil {
				c.health.recordProcessingFailure()
				c.logger.ErrorContext(ctx, "filestore_event_processing_failed",
					slog.String("error", err.Error()), slog.String("nodeId", e.NodeID), slog.String("event", e.Event))
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, e Event) error {
	if e.NodeID == "" {
		return nil
	}
	key := e.NodeID

	if e.Event == string(EventNodeDeleted) {
		_, err := c.service.SoftDelete(ctx, c.namespace, key, c.actor, nil)
		if err != nil {
			return err
		}
		c.health.recordObserved(observedAtOrNow(e))
		return nil
	}

	existing, err := c.service.Fetch(ctx, c.namespace, key, true)
	previousState := ""
	var existingMetadata map[string]any
	var existingTags []string
	var owner, schemaHash *string
	if err == nil {
		existingMetadata = existing.Metadata
		existingTags = existing.Tags
		owner = existing.Owner
		schemaHash = existing.SchemaHash
		if fsRaw, ok := existing.Metadata["filestore"].(map[string]any); ok {
			if s, ok := fsRaw["state"].(string); ok {
				previousState = s
			}
		}
	}

	envelope := map[string]any{"filestore": filestoreEnvelope(e, previousState)}
	metadata := jsonvalue.DeepMerge(existingMetadata, envelope)

	_, upsertErr := c.service.Upsert(ctx, c.namespace, key, c.actor, record.Snapshot{
		Metadata: metadata, Tags: existingTags, Owner: owner, SchemaHash: schemaHash,
	}, nil)
	if upsertErr != nil {
		return upsertErr
	}
	c.health.recordObserved(observedAtOrNow(e))
	return nil
}

func observedAtOrNow(e Event) time.Time {
	if !e.ObservedAt.IsZero() {
		return e.ObservedAt
	}
	return time.Now()
}

// Health returns the current health snapshot.
func (c *Consumer) Health() Health {
	return c.health.snapshot(time.Now())
}

// RunRedisSubscription subscribes to channel on client and feeds every
// decoded message into the consumer's queue until ctx is cancelled, with a
// reconnect-with-retry loop tracked by the connectRetries counter.
func (c *Consumer) RunRedisSubscription(ctx context.Context, client *redis.Client, channel string) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sub := client.Subscribe(ctx, channel)
		c.health.markConnected()
		msgCh := sub.Channel()

	readLoop:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-msgCh:
				if !ok {
					break readLoop
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					c.logger.ErrorContext(ctx, "filestore_event_decode_failed", slog.String("error", err.Error()))
					continue
				}
				c.Ingest(e)
			}
		}

		_ = sub.Close()
		c.health.markDisconnected()
		c.health.recordConnectRetry()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
