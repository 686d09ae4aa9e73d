package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// Application Metrics
	LinkCreationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_creation_total",
			Help: "Total number of short links created",
		},
		[]string{"status"},
	)

	RedirectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirect_total",
			Help: "Total number of alias resolutions",
		},
		[]string{"status"},
	)

	QRRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qr_render_duration_seconds",
			Help:    "QR artifact render duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	VisitUpdateFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visit_update_failures_total",
			Help: "Total number of failed fire-and-forget visit telemetry writes",
		},
	)

	// System Metrics
	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_goroutines_count",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
		[]string{"type"},
	)
)

// StartSystemMetricsCollection starts collecting system metrics periodically
func StartSystemMetricsCollection() {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			collectSystemMetrics()
		}
	}()
}

func collectSystemMetrics() {
	GoRoutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_alloc").Set(float64(m.HeapAlloc))
	MemoryUsage.WithLabelValues("heap_in_use").Set(float64(m.HeapInuse))
	MemoryUsage.WithLabelValues("stack_in_use").Set(float64(m.StackInuse))
}

// RecordHTTPMetrics records metrics for an HTTP request
func RecordHTTPMetrics(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
