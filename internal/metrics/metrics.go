// Package metrics holds the Prometheus collectors for artifact builds and
// colour imports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mosaic"

// Metrics is the set of collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	builds        *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	tiles         *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	sheets        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	imported      prometheus.Counter
	skipped       prometheus.Counter
	importBatches *prometheus.CounterVec
}

// New creates collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newWithRegistry(reg)
}

func newWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		builds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Artifact builds by kind and outcome.",
		}, []string{"kind", "outcome"}),
		buildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall time of artifact builds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"kind"}),
		tiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiles_total",
			Help:      "Tiles placed on sheets.",
		}, []string{"kind"}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_fallbacks_total",
			Help:      "Tiles drawn with the placeholder or fallback colour.",
		}, []string{"kind"}),
		sheets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_total",
			Help:      "Intermediate sheets rendered.",
		}, []string{"kind"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Non-fatal build failures by stage.",
		}, []string{"kind", "stage"}),
		imported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "palettes_imported_total",
			Help:      "Palettes written to the store by colour imports.",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "color_files_skipped_total",
			Help:      "Colour files that were missing, empty or invalid.",
		}),
		importBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_batches_total",
			Help:      "Palette update statements by outcome.",
		}, []string{"outcome"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBuild records one finished build.
func (m *Metrics) ObserveBuild(kind string, d time.Duration, degraded bool) {
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	m.builds.WithLabelValues(kind, outcome).Inc()
	m.buildDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// AddTiles counts placed tiles and how many of them fell back.
func (m *Metrics) AddTiles(kind string, tiles, fallbacks int) {
	m.tiles.WithLabelValues(kind).Add(float64(tiles))
	m.fallbacks.WithLabelValues(kind).Add(float64(fallbacks))
}

// AddSheets counts rendered sheets.
func (m *Metrics) AddSheets(kind string, n int) {
	m.sheets.WithLabelValues(kind).Add(float64(n))
}

// IncFailure counts one non-fatal failure.
func (m *Metrics) IncFailure(kind, stage string) {
	m.failures.WithLabelValues(kind, stage).Inc()
}

// ObserveImport records the outcome of one colour import.
func (m *Metrics) ObserveImport(imported, skipped, failedBatches, okBatches int) {
	m.imported.Add(float64(imported))
	m.skipped.Add(float64(skipped))
	m.importBatches.WithLabelValues("ok").Add(float64(okBatches))
	m.importBatches.WithLabelValues("failed").Add(float64(failedBatches))
}
