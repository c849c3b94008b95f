package server

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpMetrics struct {
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	inflight        *prometheus.GaugeVec
}

func newHTTPMetrics(r prometheus.Registerer) *httpMetrics {
	return &httpMetrics{
		requestDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memscope_http_request_duration_seconds",
			Help:    "Time (in seconds) spent serving HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		responseSize: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memscope_http_response_size_bytes",
			Help:    "Size (in bytes) of HTTP responses.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"method", "route"}),
		inflight: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "memscope_http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		}, []string{"method", "route"}),
	}
}

func (ctrl *Controller) trackMetrics(route string) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			inflight := ctrl.metrics.inflight.WithLabelValues(r.Method, route)
			inflight.Inc()
			defer inflight.Dec()

			m := httpsnoop.CaptureMetrics(next, w, r)
			ctrl.metrics.requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(m.Code)).Observe(m.Duration.Seconds())
			ctrl.metrics.responseSize.WithLabelValues(r.Method, route).Observe(float64(m.Written))
		}
	}
}
