package schemacache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphub/metastore/internal/platform/apperr"
	"github.com/apphub/metastore/internal/schemareg"
)

type fakeLoader struct {
	calls   int32
	def     schemareg.Definition
	err     error
	onCall  func()
}

func (f *fakeLoader) Get(ctx context.Context, schemaHash string) (schemareg.Definition, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return schemareg.Definition{}, f.err
	}
	return f.def, nil
}

func TestCache_ColdLookupLoadsAndCachesPositive(t *testing.T) {
	loader := &fakeLoader{def: schemareg.Definition{SchemaHash: "h1", Name: "widget"}}
	cache := New(loader, nil, Params{TTL: time.Minute, RefreshAhead: time.Second, RefreshInterval: time.Second})

	def, err := cache.Get(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "widget", def.Name)
	assert.EqualValues(t, 1, atomic.LoadInt32(&loader.calls))

	def2, err := cache.Get(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "widget", def2.Name)
	assert.EqualValues(t, 1, atomic.LoadInt32(&loader.calls), "second lookup is served from cache, no reload")
}

func TestCache_NotFoundCachesNegative(t *testing.T) {
	loader := &fakeLoader{err: apperr.NotFound("schema definition")}
	cache := New(loader, nil, Params{TTL: time.Minute, RefreshAhead: time.Second, RefreshInterval: time.Second})

	_, err := cache.Get(context.Background(), "missing")
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&loader.calls))

	_, err = cache.Get(context.Background(), "missing")
	assert.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&loader.calls), "negative entry suppresses a second load")
}

func TestCache_ExpiredEntryReloads(t *testing.T) {
	loader := &fakeLoader{def: schemareg.Definition{SchemaHash: "h1", Name: "v1"}}
	cache := New(loader, nil, Params{TTL: 10 * time.Millisecond, RefreshAhead: time.Millisecond, RefreshInterval: time.Second})

	_, err := cache.Get(context.Background(), "h1")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	loader.def.Name = "v2"
	def, err := cache.Get(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "v2", def.Name)
	assert.EqualValues(t, 2, atomic.LoadInt32(&loader.calls))
}

func TestCache_RefreshAheadTriggersBackgroundReload(t *testing.T) {
	loader := &fakeLoader{def: schemareg.Definition{SchemaHash: "h1", Name: "v1"}}
	cache := New(loader, nil, Params{TTL: 30 * time.Millisecond, RefreshAhead: 25 * time.Millisecond, RefreshInterval: time.Second})

	_, err := cache.Get(context.Background(), "h1")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	loader.def.Name = "v2"
	def, err := cache.Get(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "v1", def.Name, "stale-while-revalidate serves the cached value immediately")

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&loader.calls) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestCache_FailedBackgroundRefreshPostponesRatherThanEvicts(t *testing.T) {
	loader := &fakeLoader{def: schemareg.Definition{SchemaHash: "h1", Name: "v1"}}
	cache := New(loader, nil, Params{TTL: 30 * time.Millisecond, RefreshAhead: 25 * time.Millisecond, RefreshInterval: 10 * time.Millisecond})

	_, err := cache.Get(context.Background(), "h1")
	require.NoError(t, err)

	loader.err = assertError{}
	time.Sleep(10 * time.Millisecond)
	_, _ = cache.Get(context.Background(), "h1")

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&loader.calls) >= 2
	}, time.Second, 5*time.Millisecond)

	cache.mu.Lock()
	e, ok := cache.entries["h1"]
	cache.mu.Unlock()
	require.True(t, ok, "entry survives a failed background refresh")
	assert.True(t, e.hit)
}

type assertError struct{}

func (assertError) Error() string { return "simulated load failure" }

func TestNew_NegativeTTLDefaultsToMinOfTTLAndThirtySeconds(t *testing.T) {
	cache := New(&fakeLoader{}, nil, Params{TTL: 10 * time.Second, RefreshAhead: time.Second, RefreshInterval: time.Second})
	assert.Equal(t, 10*time.Second, cache.params.NegativeTTL)

	cache2 := New(&fakeLoader{}, nil, Params{TTL: time.Minute, RefreshAhead: time.Second, RefreshInterval: time.Second})
	assert.Equal(t, 30*time.Second, cache2.params.NegativeTTL)
}
