// Package metrics provides Prometheus instrumentation for Braseiro.
//
// It pre-defines the HTTP metrics plus the storage-layer counters the
// POS core increments (backend calls, fallbacks, stock rejections,
// backup/restore record outcomes).
//
// Wire it up once in internal/server:
//
//	r.Use(metrics.Middleware())
//	r.Get("/metrics", "metrics", metrics.Handler())
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ─────────────────────────────────────────────
// Built-in HTTP metrics
// ─────────────────────────────────────────────

var (
	// RequestDuration tracks how long each HTTP request takes,
	// broken down by method, route path, and status code.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "braseiro",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts all HTTP requests.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "braseiro",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// RequestInFlight tracks how many requests are currently being served.
	RequestInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "braseiro",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})
)

// ─────────────────────────────────────────────
// Storage-layer metrics
// ─────────────────────────────────────────────

var (
	// StorageOps counts every backend call the storage manager issues.
	StorageOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "braseiro",
			Subsystem: "store",
			Name:      "ops_total",
			Help:      "Storage backend calls by backend, operation and outcome.",
		},
		[]string{"backend", "op", "outcome"}, // outcome: "ok" | "error"
	)

	// StorageFallbacks counts single-call structured→flat retries.
	StorageFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "braseiro",
			Subsystem: "store",
			Name:      "fallbacks_total",
			Help:      "Structured-backend calls re-issued against the flat store.",
		},
		[]string{"op"},
	)

	// StockRejections counts cart mutations refused for lack of stock.
	StockRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "braseiro",
		Subsystem: "cart",
		Name:      "stock_rejections_total",
		Help:      "Cart mutations rejected by the stock invariant.",
	})

	// CartFlushFailures counts best-effort cart flushes that did not stick.
	CartFlushFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "braseiro",
		Subsystem: "cart",
		Name:      "flush_failures_total",
		Help:      "Asynchronous cart flushes that failed (state kept in memory).",
	})

	// BackupRecords counts records handled during restore/migration,
	// by kind and outcome.
	BackupRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "braseiro",
			Subsystem: "backup",
			Name:      "records_total",
			Help:      "Records imported or skipped by restore and migration.",
		},
		[]string{"kind", "outcome"}, // kind: "order" | "cart" | "setting" | "product"
	)
)

// ─────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────

// DefaultRegistry is the Prometheus registry used by Braseiro.
// Register your own metrics against this.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	// Go runtime metrics (GC, goroutines, memory)
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	// OS process metrics (CPU, open FDs)
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		RequestDuration,
		RequestTotal,
		RequestInFlight,
		StorageOps,
		StorageFallbacks,
		StockRejections,
		CartFlushFailures,
		BackupRecords,
	)
}

// Register lets you add your own prometheus.Collector to the registry.
func Register(c prometheus.Collector) error {
	return DefaultRegistry.Register(c)
}

// MustRegister panics if registration fails.
func MustRegister(c ...prometheus.Collector) {
	DefaultRegistry.MustRegister(c...)
}

// ─────────────────────────────────────────────
// HTTP middleware
// ─────────────────────────────────────────────

// responseRecorder wraps http.ResponseWriter to capture the status code.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records Prometheus metrics for every request: duration
// histogram, total counter, in-flight gauge.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path // raw path; the API surface is small and bounded

			RequestInFlight.Inc()
			defer RequestInFlight.Dec()

			rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rr, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rr.status)

			RequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
			RequestTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

// Handler exposes the Prometheus metrics page. Mount on GET /metrics.
func Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}
