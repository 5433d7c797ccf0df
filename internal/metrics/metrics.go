// Package metrics provides Prometheus instrumentation for the leverage engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "levengine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "levengine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"method", "path"})

	// PriceFetches counts upstream market data calls by source, call, and outcome.
	PriceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "levengine_price_fetches_total",
		Help: "Upstream price fetches by source, call type, and outcome",
	}, []string{"source", "call", "outcome"})

	// PriceFallbacks counts calls served by a non-primary source.
	PriceFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "levengine_price_fallbacks_total",
		Help: "Price calls that fell through to a backup source",
	}, []string{"call"})

	// PriceCacheHits counts price cache hits by call type and backend.
	PriceCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "levengine_price_cache_hits_total",
		Help: "Price cache hits",
	}, []string{"call", "backend"})

	// PriceCacheMisses counts price cache misses by call type and backend.
	PriceCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "levengine_price_cache_misses_total",
		Help: "Price cache misses",
	}, []string{"call", "backend"})

	// OpenPositions tracks the number of positions in the workspace.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "levengine_open_positions",
		Help: "Number of positions currently in the workspace",
	})

	// ValuationPasses counts full portfolio valuation passes.
	ValuationPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "levengine_valuation_passes_total",
		Help: "Full portfolio valuation passes",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "levengine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
