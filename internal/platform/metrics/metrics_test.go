package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_StreamSubscribersGauge(t *testing.T) {
	m := New()
	m.SetStreamSubscribers("sse", 3)
	m.SetStreamSubscribers("websocket", 1)

	assert.InDelta(t, 3, testutil.ToFloat64(m.StreamSubscribers.WithLabelValues("sse")), 0.0001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StreamSubscribers.WithLabelValues("websocket")), 0.0001)
}

func TestMetrics_SchemaCacheCounters(t *testing.T) {
	m := New()
	m.IncSchemaCacheHit("positive")
	m.IncSchemaCacheHit("positive")
	m.IncSchemaCacheMiss("cold")

	assert.InDelta(t, 2, testutil.ToFloat64(m.SchemaCacheHits.WithLabelValues("positive")), 0.0001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SchemaCacheMisses.WithLabelValues("cold")), 0.0001)
}

func TestMetrics_NamespaceGauges(t *testing.T) {
	m := New()
	m.SetNamespaceRecords("blog", 10)
	m.SetNamespaceDeletedRecords("blog", 2)

	assert.InDelta(t, 10, testutil.ToFloat64(m.NamespaceRecords.WithLabelValues("blog")), 0.0001)
	assert.InDelta(t, 2, testutil.ToFloat64(m.NamespaceDeletedRecords.WithLabelValues("blog")), 0.0001)
}

func TestMetrics_MiddlewareRecordsRequest(t *testing.T) {
	m := New()
	handler := m.Middleware(func(r *http.Request) string { return r.URL.Path })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/records", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodPost, "/records", "2xx")), 0.0001)
}

func TestMetrics_HandlerServesOpenMetrics(t *testing.T) {
	m := New()
	m.SetStreamSubscribers("sse", 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "metastore_stream_subscribers")
}
