// Copyright (c) 2026 Apphub. All rights reserved.

/*
Api is the entry point for the metastore HTTP API server.

The server provides the metadata record store backend: record lifecycle
(create/fetch/upsert/patch/delete/restore), structured + query-string
search, bulk operations, audit history, an in-process event stream
(SSE/websocket), a durable Redis-backed event bus, a filestore
reconciliation consumer, and a schema registry with a stale-while-revalidate
cache.

Usage:

	go run cmd/api/main.go [flags]

The flags/environment variables are documented in internal/platform/config.

Startup Sequence:

 1. Logger: Initialize structured JSON logging (slog).
 2. Config: Load and validate environment variables.
 3. Storage: Establish connections to Postgres and (optionally) Redis.
 4. Migration: Run idempotent schema updates.
 5. Wiring: Inject dependencies into domain services/handlers.
 6. Server: Bind HTTP listener and handle graceful shutdown.

No business logic lives here. This file is strictly for orchestration and wiring.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/apphub/metastore/internal/api"
	"github.com/apphub/metastore/internal/eventbus"
	"github.com/apphub/metastore/internal/filestore"
	"github.com/apphub/metastore/internal/identity"
	"github.com/apphub/metastore/internal/namespace"
	"github.com/apphub/metastore/internal/platform/config"
	"github.com/apphub/metastore/internal/platform/constants"
	"github.com/apphub/metastore/internal/platform/metrics"
	"github.com/apphub/metastore/internal/platform/migration"
	pgstore "github.com/apphub/metastore/internal/platform/postgres"
	requestutil "github.com/apphub/metastore/internal/platform/request"
	redisstore "github.com/apphub/metastore/internal/platform/redis"
	"github.com/apphub/metastore/internal/platform/respond"
	"github.com/apphub/metastore/internal/record"
	"github.com/apphub/metastore/internal/schemacache"
	"github.com/apphub/metastore/internal/schemareg"
	"github.com/apphub/metastore/internal/searchpreset"
	"github.com/apphub/metastore/internal/stream"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("metastore_service_initializing")

	// # 2. Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.Port),
	)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// # 3. PostgreSQL
	// DatabaseURLWithSchema bakes cfg.PgSchema in as a search_path parameter
	// so every connection (pool and migrator alike) resolves metastore's
	// tables there without each query qualifying the schema explicitly.
	databaseURL := cfg.DatabaseURLWithSchema()
	pool, err := pgstore.NewPool(startupCtx, databaseURL, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// # 4. Migrations
	if err := migration.RunUp(databaseURL, cfg.MigrationPath, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// # 5. Shared Redis client (durable event bus + filestore transport),
	// only connected eagerly when a real endpoint is configured; "inline"
	// selects the in-process filestore transport instead.
	var rdb *goredis.Client
	redisURL := cfg.EffectiveRedisURL()
	usesInlineFilestore := redisURL == "inline"
	if usesInlineFilestore && !cfg.AllowInlineMode {
		return fmt.Errorf("inline filestore transport requested but APPHUB_ALLOW_INLINE_MODE is not set")
	}
	if redisURL != "" && !usesInlineFilestore {
		rdb, err = redisstore.NewClient(startupCtx, redisURL, log)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
	}

	// # 6. Identity / token index
	var idx *identity.Index
	if cfg.AuthDisabled {
		idx = identity.Disabled()
	} else {
		idx, err = identity.NewIndex(cfg.Tokens, cfg.TokensPath)
		if err != nil {
			return fmt.Errorf("load token index: %w", err)
		}
	}

	// # 7. Search presets
	presets, err := searchpreset.Load(cfg.SearchPresets, cfg.SearchPresetsPath)
	if err != nil {
		return fmt.Errorf("load search presets: %w", err)
	}

	// # 8. Metrics registry
	// The three domain packages below each declare their own narrow Metrics
	// interface. A nil *metrics.Metrics assigned directly into an interface
	// parameter would produce a non-nil interface wrapping a nil pointer, so
	// each dependent is only threaded through when metrics are actually
	// enabled, keeping the interface value itself genuinely nil otherwise.
	var metricsRegistry *metrics.Metrics
	var metricsHandler http.Handler
	var streamMetrics stream.Metrics
	var namespaceMetrics namespace.Metrics
	var schemaCacheMetrics schemacache.Metrics
	if cfg.MetricsEnabled {
		metricsRegistry = metrics.New()
		metricsHandler = metricsRegistry.Handler()
		streamMetrics = metricsRegistry
		namespaceMetrics = metricsRegistry
		schemaCacheMetrics = metricsRegistry
	}

	// # 9. Stream hub
	hub := stream.NewHub(streamMetrics)

	// # 10. Durable event bus (best-effort, lazily connects)
	bus := eventbus.New(redisConnector(cfg, log), "", log)
	defer func() {
		if cerr := bus.Close(); cerr != nil {
			log.Error("eventbus close error", slog.Any("error", cerr))
		}
	}()

	// # 11. Record domain
	recordRepo := record.NewRepository(pool)
	auditReader := record.NewAuditReader(pool)
	recordSvc := record.NewService(recordRepo, auditReader, hub, bus, log)
	recordHdl := record.NewHandlers(recordSvc, presets)

	// # 12. Namespace summaries
	namespaceRepo := namespace.NewRepository(pool)
	namespaceSvc := namespace.NewService(namespaceRepo, namespaceMetrics)
	namespaceHdl := namespace.NewHandlers(namespaceSvc)

	// # 13. Schema registry + cache
	schemaStore := schemareg.NewStore(pool)
	schemaCache := schemacache.New(schemaStore, schemaCacheMetrics, schemacache.Params{
		TTL:             time.Duration(cfg.SchemaCacheTTLSeconds) * time.Second,
		RefreshAhead:    time.Duration(cfg.SchemaCacheRefreshAheadSeconds) * time.Second,
		RefreshInterval: time.Duration(cfg.SchemaCacheRefreshIntervalSecs) * time.Second,
		NegativeTTL:     time.Duration(cfg.SchemaCacheNegativeTTLSeconds) * time.Second,
	})
	schemaHdl := schemareg.NewHandlers(schemaStore, schemaCache)

	// # 14. Filestore reconciliation consumer
	filestoreConsumer := filestore.NewConsumer(recordSvc, filestore.Config{
		Enabled:        cfg.FilestoreSyncEnabled,
		Namespace:      cfg.FilestoreNamespace,
		StallThreshold: time.Duration(cfg.FilestoreStallThresholdSec) * time.Second,
		Actor:          "filestore-sync",
	}, log, usesInlineFilestore)

	// # 15. Background workers
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	schemaCache.RunRefreshLoop(appCtx)
	defer schemaCache.Stop()

	if cfg.FilestoreSyncEnabled {
		go filestoreConsumer.Run(appCtx)
		if !usesInlineFilestore {
			filestoreRedis, ferr := filestoreRedisClient(startupCtx, cfg, rdb, log)
			if ferr != nil {
				return fmt.Errorf("connect filestore redis transport: %w", ferr)
			}
			go filestoreConsumer.RunRedisSubscription(appCtx, filestoreRedis, cfg.FilestoreEventsChannel)
		}
	}

	// # 16. Health wiring
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			if rdb == nil {
				return nil
			}
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// # 17. API Assembly
	handlers := api.Handlers{
		Liveness:        liveness,
		Readiness:       readiness,
		FilestoreHealth: api.FilestoreHealthHandler(filestoreConsumer),
		Metrics:         metricsHandler,
		Record:          recordHdl,
		Namespace:       namespaceHdl,
		Stream:          stream.NewHandlers(hub),
		Schema:          schemaHdl,
		ReloadTokens:    reloadTokensHandler(idx, cfg.AuthDisabled),
	}

	server := api.NewServer(appCtx, cfg, log, idx, handlers)

	// # 18. Lifecycle Handling
	shutdownErr := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownErr <- fmt.Errorf("http_server_crash: %w", err)
		}
	}()

	log.Info("metastore_api_running", slog.String("port", cfg.Port))

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-shutdownErr:
		return err
	}

	appCancel()

	log.Info("shutting_down_api_server", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		return fmt.Errorf("server_shutdown_failed: %w", err)
	}

	log.Info("graceful_shutdown_complete")
	return nil
}

// redisConnector returns the lazy-connect function the durable event bus
// uses on first publish; it dials a client of its own (separate from the
// shared one) against the effective Redis URL.
func redisConnector(cfg *config.Config, log *slog.Logger) func(ctx context.Context) (*goredis.Client, error) {
	return func(ctx context.Context) (*goredis.Client, error) {
		redisURL := cfg.EffectiveRedisURL()
		if redisURL == "" || redisURL == "inline" {
			return nil, fmt.Errorf("eventbus: no redis endpoint configured")
		}
		return redisstore.NewClient(ctx, redisURL, log)
	}
}

// filestoreRedisClient resolves the client the filestore consumer's Redis
// subscription should use, preferring the already-connected shared client
// when its URL matches the filestore-specific one, else dialing separately.
func filestoreRedisClient(ctx context.Context, cfg *config.Config, shared *goredis.Client, log *slog.Logger) (*goredis.Client, error) {
	if cfg.FilestoreRedisURL == "" || cfg.FilestoreRedisURL == cfg.RedisURL {
		if shared != nil {
			return shared, nil
		}
	}
	return redisstore.NewClient(ctx, cfg.EffectiveRedisURL(), log)
}

// reloadTokensHandler serves POST /admin/tokens/reload, re-reading the
// configured token source and atomically swapping the active index.
// When auth is disabled the index holds no file/inline source (it was
// built by [identity.Disabled]) and reloading would wipe the synthetic
// local-dev identity, so the endpoint is a no-op in that mode.
func reloadTokensHandler(idx *identity.Index, authDisabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := requestutil.RequireScope(r, identity.ScopeAdmin); err != nil {
			respond.Error(w, r, err)
			return
		}
		if authDisabled {
			respond.JSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "auth disabled"})
			return
		}
		if err := idx.Reload(); err != nil {
			respond.Error(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
}
