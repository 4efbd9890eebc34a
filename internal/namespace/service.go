// Copyright (c) 2026 Apphub. All rights reserved.

package namespace

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const cacheTTL = 30 * time.Second

// gaugeSnapshotLimit bounds the full-page pull used to refresh the
// process-wide namespace gauges; large enough to cover realistic namespace
// counts while still being a single bounded query.
const gaugeSnapshotLimit = 10000

// Metrics is the subset of gauge operations the service needs.
type Metrics interface {
	SetNamespaceRecords(namespace string, count int)
	SetNamespaceDeletedRecords(namespace string, count int)
}

// Lister is the read path a Repository offers the service.
type Lister interface {
	List(ctx context.Context, req ListRequest) (ListResult, error)
}

type cacheEntry struct {
	result    ListResult
	expiresAt time.Time
}

// Service fronts a Repository with a 30-second result cache and the
// gauge-refresh side effect for unscoped, prefix-less, first-page requests.
type Service struct {
	repo    Lister
	metrics Metrics

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewService constructs a namespace summary service.
func NewService(repo Lister, metrics Metrics) *Service {
	return &Service{repo: repo, metrics: metrics, cache: make(map[string]cacheEntry)}
}

// List resolves req, serving a cached page when available. When the
// request is unscoped, has no prefix, and asks for offset 0, it also
// refreshes the namespace_records / namespace_deleted_records gauges from a
// full-page snapshot (itself cached under a distinct key).
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	result, err := s.cachedList(ctx, req, cacheKey(req))
	if err != nil {
		return ListResult{}, err
	}

	if req.Scope.Wildcard && req.Prefix == "" && req.Offset == 0 {
		s.refreshGauges(ctx)
	}
	return result, nil
}

func (s *Service) cachedList(ctx context.Context, req ListRequest, key string) (ListResult, error) {
	now := time.Now()

	s.mu.Lock()
	if e, ok := s.cache[key]; ok && now.Before(e.expiresAt) {
		s.mu.Unlock()
		return e.result, nil
	}
	s.mu.Unlock()

	result, err := s.repo.List(ctx, req)
	if err != nil {
		return ListResult{}, err
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{result: result, expiresAt: now.Add(cacheTTL)}
	s.mu.Unlock()

	return result, nil
}

func (s *Service) refreshGauges(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	snapshot, err := s.cachedList(ctx, ListRequest{
		Scope: Scope{Wildcard: true}, Limit: gaugeSnapshotLimit, Offset: 0,
	}, gaugeCacheKey())
	if err != nil {
		return
	}
	for _, ns := range snapshot.Namespaces {
		s.metrics.SetNamespaceRecords(ns.Namespace, ns.Total)
		s.metrics.SetNamespaceDeletedRecords(ns.Namespace, ns.Deleted)
	}
}

func cacheKey(req ListRequest) string {
	scope := "*"
	if !req.Scope.Wildcard {
		namespaces := append([]string{}, req.Scope.Namespaces...)
		sort.Strings(namespaces)
		scope = strings.Join(namespaces, ",")
	}
	return fmt.Sprintf("%s|%s|%d|%d", scope, req.Prefix, req.Limit, req.Offset)
}

func gaugeCacheKey() string {
	return fmt.Sprintf("*||%d|0", gaugeSnapshotLimit)
}
