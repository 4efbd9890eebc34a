// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Stream Hub: SSE dispatcher queue depth and token bucket defaults.
  - Schema Cache: TTL, negative TTL, and refresh-ahead defaults.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "metastore"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for a single non-streaming request's lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting (HTTP ingress, per client IP)

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Pagination & Search

const (
	// DefaultSearchLimit is applied when a search or list request omits limit.
	DefaultSearchLimit = 50

	// MaxSearchLimit is the upper bound accepted for limit on search/list endpoints.
	MaxSearchLimit = 200

	// MaxSortFields is the maximum number of fields accepted in a sort clause.
	MaxSortFields = 5

	// MaxProjectionPaths is the maximum number of projection paths per search request.
	MaxProjectionPaths = 32

	// MaxFilterDepth is the maximum nesting depth of a structured filter tree.
	MaxFilterDepth = 8
)

// # Stream Hub (component E)

const (
	// SSEQueueCapacity is the bounded FIFO depth of a single SSE dispatcher.
	SSEQueueCapacity = 1000

	// SSETokenBucketCapacity is the token bucket size for a single SSE dispatcher.
	SSETokenBucketCapacity = 200

	// SSETokenBucketRefillInterval is how often the token bucket refills to capacity.
	SSETokenBucketRefillInterval = 1 * time.Second

	// SSEHeartbeatInterval is the period between `:ping` comment frames.
	SSEHeartbeatInterval = 15 * time.Second

	// SSERetryMillis is the value sent in the initial `retry:` field.
	SSERetryMillis = 5000
)

// # Filestore Reconciliation Consumer (component G)

const (
	// DefaultStallThreshold is the default lag beyond which filestore health is "stalled".
	DefaultStallThreshold = 30 * time.Second
)

// # Schema Registry Cache (component H)

const (
	// DefaultSchemaCacheTTL is the positive-hit cache lifetime when unconfigured.
	DefaultSchemaCacheTTL = 60 * time.Second

	// DefaultSchemaCacheRefreshAhead is how long before expiry a background refresh starts.
	DefaultSchemaCacheRefreshAhead = 10 * time.Second

	// DefaultSchemaCacheRefreshInterval is the minimum interval between the cache's scan ticks.
	DefaultSchemaCacheRefreshInterval = 1 * time.Second

	// MaxNegativeTTLCeiling bounds the default negative TTL relative to the positive TTL
	// when negativeTtl is unspecified: min(ttl, 30s).
	MaxNegativeTTLCeiling = 30 * time.Second
)

// # Namespace Summary (component I)

const (
	// NamespaceSummaryCacheTTL is how long an aggregated namespace page is cached.
	NamespaceSummaryCacheTTL = 30 * time.Second
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldItems   = "items"
	FieldTotal   = "total"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # HTTP Headers

const (
	HeaderXRequestID     = "X-Request-ID"
	HeaderXRealIP        = "X-Real-IP"
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderOrigin         = "Origin"
	HeaderAuthorization  = "Authorization"
	HeaderContentType    = "Content-Type"
	HeaderLastEventID    = "Last-Event-ID"
)

// # Database Schema

const (
	// DefaultSchema is used when APPHUB_METASTORE_PG_SCHEMA is unset.
	DefaultSchema = "metastore"
)

// # Redis Channels

const (
	// RedisChannelEvents is the Pub/Sub channel the durable event bus publishes record
	// lifecycle events to.
	RedisChannelEvents = "metastore:events"

	// RedisChannelFilestore is the Pub/Sub channel external filestore services publish
	// node reconciliation events to, consumed by the filestore reconciliation component.
	RedisChannelFilestore = "metastore:filestore:events"
)
