package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveQuery(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveQuery("search", time.Now(), nil)
	m.ObserveQuery("search", time.Now(), nil)
	m.ObserveQuery("stats", time.Now(), errors.New("boom"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.queries.WithLabelValues("search", StatusOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.queries.WithLabelValues("stats", StatusError)), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.queryDuration))
}

func TestMetrics_Cache(t *testing.T) {
	t.Parallel()

	m := New()
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()

	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheHits), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.cacheMisses), 0)
}

func TestMetrics_GraphAndReloads(t *testing.T) {
	t.Parallel()

	m := New()
	m.SetGraphVertices(map[string]int{"Taxon": 3, "NatureArea": 2})
	m.SetGraphVertices(map[string]int{"Taxon": 4})
	m.Reload(nil)
	m.Reload(errors.New("bad input"))
	m.ObserveBuild("graph", time.Second)

	assert.InDelta(t, 4, testutil.ToFloat64(m.graphVertices.WithLabelValues("Taxon")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.graphVertices))
	assert.InDelta(t, 1, testutil.ToFloat64(m.reloads.WithLabelValues(StatusError)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.buildDuration))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.CacheHit()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ninmem_stat_cache_hits_total 1"))
}

func TestMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery("search", time.Now(), nil)
		m.CacheHit()
		m.CacheMiss()
		m.ObserveBuild("graph", time.Second)
		m.SetGraphVertices(map[string]int{"Taxon": 1})
		m.Reload(nil)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
