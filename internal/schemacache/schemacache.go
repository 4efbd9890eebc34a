// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package schemacache is a process-wide map from schemaHash to either a
positive ("hit") or negative ("miss") cache entry, fronting
internal/schemareg's PostgreSQL-backed store.

Lookups are stale-while-revalidate: a fresh hit is served immediately; a hit
past its refresh-ahead point is served while a background refresh runs
single-flighted; an absent or expired entry performs a foreground,
single-flighted load. A failed background refresh postpones expiresAt
rather than evicting, so a transient backend outage degrades gracefully
instead of stampeding on every subsequent request.
*/
package schemacache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/apphub/metastore/internal/schemareg"
)

// Metrics is the subset of counter operations the cache needs.
type Metrics interface {
	IncSchemaCacheHit(kind string)
	IncSchemaCacheMiss(reason string)
}

// Loader fetches a definition by schemaHash from the backing store.
type Loader interface {
	Get(ctx context.Context, schemaHash string) (schemareg.Definition, error)
}

// Params configures cache timing, all in the same unit as time.Duration.
type Params struct {
	TTL             time.Duration
	RefreshAhead    time.Duration
	RefreshInterval time.Duration
	NegativeTTL     time.Duration
}

// entry is either a positive (value set) or negative (value unset) cache slot.
type entry struct {
	hit        bool
	value      schemareg.Definition
	expiresAt  time.Time
	refreshAt  time.Time
	refreshing bool
}

// Cache is the schema registry cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	loader  Loader
	metrics Metrics
	params  Params
	group   singleflight.Group

	stop chan struct{}
}

// New constructs a cache. RefreshInterval is clamped to at least one second
// per spec; NegativeTTL defaults to min(ttl, 30s) when zero and TTL is positive.
func New(loader Loader, metrics Metrics, params Params) *Cache {
	if params.RefreshInterval < time.Second {
		params.RefreshInterval = time.Second
	}
	if params.NegativeTTL == 0 && params.TTL > 0 {
		params.NegativeTTL = params.TTL
		if params.NegativeTTL > 30*time.Second {
			params.NegativeTTL = 30 * time.Second
		}
	}
	return &Cache{
		entries: make(map[string]*entry),
		loader:  loader,
		metrics: metrics,
		params:  params,
		stop:    make(chan struct{}),
	}
}

// Get resolves schemaHash, serving a fresh cached value, triggering a
// background refresh for a due-but-fresh hit, or performing a
// single-flighted foreground load on a cold or expired entry.
func (c *Cache) Get(ctx context.Context, schemaHash string) (schemareg.Definition, error) {
	now := time.Now()

	c.mu.Lock()
	e, ok := c.entries[schemaHash]
	if ok && now.Before(e.expiresAt) {
		if e.hit {
			c.incHit("positive")
			needsRefresh := !e.refreshing && !e.refreshAt.IsZero() && !now.Before(e.refreshAt)
			if needsRefresh {
				e.refreshing = true
			}
			value := e.value
			c.mu.Unlock()
			if needsRefresh {
				go c.refresh(schemaHash)
			}
			return value, nil
		}
		c.incHit("negative")
		c.mu.Unlock()
		return schemareg.Definition{}, apperr.NotFound("schema definition")
	}
	reason := "expired"
	if !ok {
		reason = "cold"
	}
	c.mu.Unlock()
	c.incMiss(reason)

	return c.load(ctx, schemaHash)
}

func (c *Cache) incHit(kind string) {
	if c.metrics != nil {
		c.metrics.IncSchemaCacheHit(kind)
	}
}

func (c *Cache) incMiss(reason string) {
	if c.metrics != nil {
		c.metrics.IncSchemaCacheMiss(reason)
	}
}

// load performs the single-flighted foreground fetch for a cold/expired key.
func (c *Cache) load(ctx context.Context, schemaHash string) (schemareg.Definition, error) {
	result, err, _ := c.group.Do(schemaHash, func() (any, error) {
		def, loadErr := c.loader.Get(ctx, schemaHash)
		if loadErr != nil {
			if ae := apperr.As(loadErr); ae != nil && ae.Code == "not_found" {
				c.storeNegative(schemaHash)
				return schemareg.Definition{}, loadErr
			}
			c.evict(schemaHash)
			return schemareg.Definition{}, loadErr
		}
		c.storePositive(schemaHash, def)
		return def, nil
	})
	if err != nil {
		return schemareg.Definition{}, err
	}
	return result.(schemareg.Definition), nil
}

// refresh runs a single-flighted background reload for a hit past its
// refresh-ahead point. On failure, expiresAt is postponed rather than the
// entry evicted, per the postpone-not-evict stampede guard.
func (c *Cache) refresh(schemaHash string) {
	defer func() {
		c.mu.Lock()
		if e, ok := c.entries[schemaHash]; ok {
			e.refreshing = false
		}
		c.mu.Unlock()
	}()

	ctx := context.Background()
	_, _, _ = c.group.Do("refresh:"+schemaHash, func() (any, error) {
		def, err := c.loader.Get(ctx, schemaHash)
		if err != nil {
			c.postpone(schemaHash)
			return nil, err
		}
		c.storePositive(schemaHash, def)
		return def, nil
	})
}

func (c *Cache) storePositive(schemaHash string, def schemareg.Definition) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[schemaHash] = &entry{
		hit:       true,
		value:     def,
		expiresAt: now.Add(c.params.TTL),
		refreshAt: now.Add(c.params.TTL - c.params.RefreshAhead),
	}
}

func (c *Cache) storeNegative(schemaHash string) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[schemaHash] = &entry{
		hit:       false,
		expiresAt: now.Add(c.params.NegativeTTL),
	}
}

func (c *Cache) postpone(schemaHash string) {
	postponeBy := c.params.RefreshInterval
	if c.params.TTL < postponeBy {
		postponeBy = c.params.TTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[schemaHash]; ok {
		e.expiresAt = e.expiresAt.Add(postponeBy)
	}
}

func (c *Cache) evict(schemaHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, schemaHash)
}

// RunRefreshLoop periodically scans entries and triggers a background
// refresh for any hit due for refresh, until ctx is cancelled.
func (c *Cache) RunRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.params.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.scanAndRefresh()
		}
	}
}

// Stop halts RunRefreshLoop if it is running.
func (c *Cache) Stop() {
	close(c.stop)
}

func (c *Cache) scanAndRefresh() {
	now := time.Now()
	var due []string
	c.mu.Lock()
	for hash, e := range c.entries {
		if e.hit && !e.refreshing && now.Before(e.expiresAt) && !now.Before(e.refreshAt) {
			e.refreshing = true
			due = append(due, hash)
		}
	}
	c.mu.Unlock()

	for _, hash := range due {
		go c.refresh(hash)
	}
}
