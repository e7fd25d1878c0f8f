// Package metrics exposes Prometheus counters for the HTTP server and the
// document actions it performs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "busdocs"

// HTTPServerMetrics owns a private registry so tests can build many.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal    *prometheus.CounterVec
	statusSaves     *prometheus.CounterVec
	printsTotal     *prometheus.CounterVec
	reconciledTotal prometheus.Counter
}

// NewHTTPServerMetrics registers every collector.
func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "route", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "route"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "uploads_total",
			Help:      "Document file uploads by type and outcome.",
		},
		[]string{"tipo_documento", "status"},
	)
	statusSaves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "status_saves_total",
			Help:      "Status saves, split by whether critical documents remained.",
		},
		[]string{"critical"},
	)
	printsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "print",
			Name:      "sheets_total",
			Help:      "Rendered print sheets by mode.",
		},
		[]string{"modo"},
	)
	reconciledTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "print",
			Name:      "reconciled_rows_total",
			Help:      "Status rows flipped to TIENE by full prints.",
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadsTotal,
		statusSaves,
		printsTotal,
		reconciledTotal,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		uploadsTotal:    uploadsTotal,
		statusSaves:     statusSaves,
		printsTotal:     printsTotal,
		reconciledTotal: reconciledTotal,
	}
}

// Handler serves the registry.
func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request counts and latency labelled by chi route
// pattern, so plates and ids do not explode the label space.
func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestTotal.WithLabelValues(m.service, r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordUpload counts one upload attempt.
func (m *HTTPServerMetrics) RecordUpload(tipo string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.uploadsTotal.WithLabelValues(tipo, status).Inc()
}

// RecordStatusSave counts a status save.
func (m *HTTPServerMetrics) RecordStatusSave(criticalCount int) {
	m.statusSaves.WithLabelValues(strconv.FormatBool(criticalCount > 0)).Inc()
}

// RecordPrint counts a rendered sheet and the rows it reconciled.
func (m *HTTPServerMetrics) RecordPrint(modo string, reconciled int64) {
	m.printsTotal.WithLabelValues(modo).Inc()
	if reconciled > 0 {
		m.reconciledTotal.Add(float64(reconciled))
	}
}
