package namespace

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	calls  int32
	result ListResult
	err    error
}

func (f *fakeRepo) List(ctx context.Context, req ListRequest) (ListResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return ListResult{}, f.err
	}
	return f.result, nil
}

type fakeMetrics struct {
	records map[string]int
	deleted map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{records: map[string]int{}, deleted: map[string]int{}}
}

func (f *fakeMetrics) SetNamespaceRecords(namespace string, count int) {
	f.records[namespace] = count
}

func (f *fakeMetrics) SetNamespaceDeletedRecords(namespace string, count int) {
	f.deleted[namespace] = count
}

func TestService_CachesRepeatedLookups(t *testing.T) {
	repo := &fakeRepo{result: ListResult{Namespaces: []Summary{{Namespace: "blog", Total: 3}}, Total: 1}}
	svc := NewService(repo, nil)
	req := ListRequest{Scope: Scope{Namespaces: []string{"blog"}}, Limit: 50, Offset: 1}

	_, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.List(context.Background(), req)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&repo.calls), "second call within TTL is served from cache")
}

func TestService_DistinctKeysAreNotConflated(t *testing.T) {
	repo := &fakeRepo{result: ListResult{Namespaces: []Summary{{Namespace: "blog", Total: 3}}, Total: 1}}
	svc := NewService(repo, nil)

	_, err := svc.List(context.Background(), ListRequest{Scope: Scope{Namespaces: []string{"blog"}}, Limit: 50, Offset: 0})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), ListRequest{Scope: Scope{Namespaces: []string{"docs"}}, Limit: 50, Offset: 0})
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&repo.calls))
}

func TestService_UnscopedFirstPageRefreshesGauges(t *testing.T) {
	repo := &fakeRepo{result: ListResult{
		Namespaces: []Summary{{Namespace: "blog", Total: 3, Deleted: 1}, {Namespace: "docs", Total: 7, Deleted: 0}},
		Total:      2,
	}}
	metrics := newFakeMetrics()
	svc := NewService(repo, metrics)

	_, err := svc.List(context.Background(), ListRequest{Scope: Scope{Wildcard: true}, Limit: 50, Offset: 0})
	require.NoError(t, err)

	assert.Equal(t, 3, metrics.records["blog"])
	assert.Equal(t, 1, metrics.deleted["blog"])
	assert.Equal(t, 7, metrics.records["docs"])
	assert.Equal(t, 0, metrics.deleted["docs"])
}

func TestService_ScopedRequestDoesNotRefreshGauges(t *testing.T) {
	repo := &fakeRepo{result: ListResult{Namespaces: []Summary{{Namespace: "blog", Total: 3}}, Total: 1}}
	metrics := newFakeMetrics()
	svc := NewService(repo, metrics)

	_, err := svc.List(context.Background(), ListRequest{Scope: Scope{Namespaces: []string{"blog"}}, Limit: 50, Offset: 0})
	require.NoError(t, err)

	assert.Empty(t, metrics.records)
}

func TestService_PrefixedOrPagedRequestDoesNotRefreshGauges(t *testing.T) {
	repo := &fakeRepo{result: ListResult{Namespaces: []Summary{{Namespace: "blog", Total: 3}}, Total: 1}}
	metrics := newFakeMetrics()
	svc := NewService(repo, metrics)

	_, err := svc.List(context.Background(), ListRequest{Scope: Scope{Wildcard: true}, Prefix: "blo", Limit: 50, Offset: 0})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), ListRequest{Scope: Scope{Wildcard: true}, Limit: 50, Offset: 50})
	require.NoError(t, err)

	assert.Empty(t, metrics.records)
}

func TestService_CacheExpiresAfterTTL(t *testing.T) {
	repo := &fakeRepo{result: ListResult{Namespaces: []Summary{{Namespace: "blog", Total: 3}}, Total: 1}}
	svc := NewService(repo, nil)
	req := ListRequest{Scope: Scope{Namespaces: []string{"blog"}}, Limit: 50, Offset: 0}
	svc.cache[cacheKey(req)] = cacheEntry{result: repo.result, expiresAt: time.Now().Add(-time.Second)}

	_, err := svc.List(context.Background(), req)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&repo.calls))
}

func TestService_PropagatesRepositoryError(t *testing.T) {
	repo := &fakeRepo{err: assertError{}}
	svc := NewService(repo, nil)

	_, err := svc.List(context.Background(), ListRequest{Scope: Scope{Wildcard: true}, Limit: 50, Offset: 0})
	assert.Error(t, err)
}

type assertError struct{}

func (assertError) Error() string { return "simulated repository failure" }
