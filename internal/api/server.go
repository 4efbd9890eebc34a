// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/apphub/metastore/internal/namespace"
	"github.com/apphub/metastore/internal/platform/config"
	"github.com/apphub/metastore/internal/platform/constants"
	"github.com/apphub/metastore/internal/platform/middleware"
	"github.com/apphub/metastore/internal/record"
	"github.com/apphub/metastore/internal/schemareg"
	"github.com/apphub/metastore/internal/stream"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /healthz handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /readyz handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// FilestoreHealth is the /filestore/health handler (read-scoped).
	FilestoreHealth http.HandlerFunc

	// Metrics serves /metrics when the registry is enabled; when nil the
	// route answers 503 (per spec.md §6 on "metrics disabled").
	Metrics http.Handler

	// Record handles the /records CRUD, search, bulk, and audit surface.
	Record *record.Handlers

	// Namespace handles GET /namespaces.
	Namespace *namespace.Handlers

	// Stream handles GET /stream/records (SSE/websocket).
	Stream *stream.Handlers

	// Schema handles the /schemas and /admin/schemas surface.
	Schema *schemareg.Handlers

	// ReloadTokens handles POST /admin/tokens/reload.
	ReloadTokens http.HandlerFunc
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, verifier middleware.TokenResolver, h Handlers) *Server {
	rte := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution. The per-request
	// deadline (chimw.Timeout) is deliberately NOT global: it is applied
	// per-route below, scoped away from /stream/records, so a long-lived
	// SSE/websocket subscriber is torn down only by client disconnect —
	// never by a fixed request deadline — per the "no operation silently
	// outlives its caller, but streams end on disconnect" cancellation
	// policy.
	rte.Use(middleware.RequestID())
	rte.Use(middleware.StructuredLogger(log))
	rte.Use(middleware.RateLimit(ctx))
	rte.Use(middleware.PanicRecovery(log))
	rte.Use(middleware.Authenticate(verifier))
	rte.Use(middleware.CORS(cfg))
	rte.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated (or, for filestore health, self-gated) probes
	// for container orchestration and scraping.
	rte.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
		r.Get("/healthz", h.Liveness)
		r.Get("/readyz", h.Readiness)
		r.Get("/filestore/health", h.FilestoreHealth)
		if h.Metrics != nil {
			r.Handle("/metrics", h.Metrics)
		} else {
			r.Get("/metrics", metricsDisabled)
		}

		// # Application API
		// Domain-specific route groups.
		r.Route("/records", func(r chi.Router) {
			r.Post("/", h.Record.Create)
			r.Post("/search", h.Record.Search)
			r.Post("/bulk", h.Record.Bulk)
			r.Get("/{ns}/{key}", h.Record.Fetch)
			r.Put("/{ns}/{key}", h.Record.Upsert)
			r.Patch("/{ns}/{key}", h.Record.Patch)
			r.Delete("/{ns}/{key}", h.Record.SoftDelete)
			r.Delete("/{ns}/{key}/purge", h.Record.Purge)
			r.Post("/{ns}/{key}/restore", h.Record.Restore)
			r.Get("/{ns}/{key}/audit", h.Record.ListAudit)
			r.Get("/{ns}/{key}/audit/{id}/diff", h.Record.DiffAudit)
		})

		r.Get("/namespaces", h.Namespace.List)

		r.Get("/schemas/{hash}", h.Schema.Get)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/schemas", h.Schema.RegisterOrUpdate)
			r.Post("/tokens/reload", h.ReloadTokens)
		})
	})

	// The stream route carries no request deadline and no write timeout;
	// its lifecycle is bound to client disconnect only.
	rte.Get("/stream/records", h.Stream.Serve)

	return &Server{
		router: rte,
		log:    log,
		httpServer: &http.Server{
			Addr:              cfg.Host + ":" + cfg.Port,
			Handler:           rte,
			ReadTimeout:       constants.DefaultReadTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

func metricsDisabled(w http.ResponseWriter, r *http.Request) {
	http.Error(w, `{"error":"metrics disabled","code":"service_unavailable"}`, http.StatusServiceUnavailable)
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
