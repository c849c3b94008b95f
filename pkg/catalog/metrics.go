package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	queries              *prometheus.CounterVec
	diagnostics          *prometheus.GaugeVec
	structs              *prometheus.GaugeVec
	reloads              *prometheus.CounterVec
	lastReloadSuccessful prometheus.Gauge
	buildDuration        prometheus.Histogram
}

func newMetrics(r prometheus.Registerer) *metrics {
	return &metrics{
		queries: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "memscope_catalog_queries_total",
			Help: "Number of resolution queries by version, kind and outcome.",
		}, []string{"version", "kind", "outcome"}),
		diagnostics: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "memscope_catalog_diagnostics",
			Help: "Number of diagnostics reported by the last build of a version.",
		}, []string{"version", "kind"}),
		structs: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "memscope_catalog_structs",
			Help: "Number of struct types declared by a version.",
		}, []string{"version"}),
		reloads: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "memscope_catalog_reloads_total",
			Help: "Number of catalog reloads by outcome.",
		}, []string{"outcome"}),
		lastReloadSuccessful: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Name: "memscope_catalog_last_reload_successful",
			Help: "Whether the last catalog reload succeeded.",
		}),
		buildDuration: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
			Name:    "memscope_catalog_build_duration_seconds",
			Help:    "Time taken to load and build one version.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
