package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBuild(t *testing.T) {
	m := newWithRegistry(prometheus.NewRegistry())

	m.ObserveBuild("atlas", 2*time.Second, false)
	m.ObserveBuild("atlas", time.Second, true)
	m.ObserveBuild("pixels", time.Second, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("atlas", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("atlas", "degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("pixels", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.buildDuration))
}

func TestTilesAndFailures(t *testing.T) {
	m := newWithRegistry(prometheus.NewRegistry())

	m.AddTiles("pixels", 10, 3)
	m.AddTiles("pixels", 5, 0)
	m.AddSheets("pixels", 4)
	m.IncFailure("atlas", "stack")

	assert.Equal(t, 15.0, testutil.ToFloat64(m.tiles.WithLabelValues("pixels")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("pixels")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sheets.WithLabelValues("pixels")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("atlas", "stack")))
}

func TestObserveImport(t *testing.T) {
	m := newWithRegistry(prometheus.NewRegistry())

	m.ObserveImport(7, 2, 1, 3)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.imported))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skipped))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.importBatches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importBatches.WithLabelValues("failed")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.AddSheets("atlas", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `mosaic_sheets_total{kind="atlas"} 1`), body)
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
