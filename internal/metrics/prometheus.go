// Package metrics exposes the control plane's Prometheus instrumentation:
// HTTP request counters/histograms for the admin API, byte counters for
// the two proxies, and sweep counters for the enforcement monitor.
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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentplane_http_requests_total",
			Help: "Total number of admin-API HTTP requests processed",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentplane_http_request_duration_seconds",
			Help:    "Admin-API HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentplane_http_requests_in_flight",
			Help: "Number of admin-API HTTP requests currently being processed",
		},
	)

	forwardProxyBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentplane_forward_proxy_bytes_total",
			Help: "Bytes relayed through the forward proxy, by agent and direction",
		},
		[]string{"agent_id", "direction"},
	)

	forwardProxyDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentplane_forward_proxy_denials_total",
			Help: "Forward-proxy requests denied at admission, by reason",
		},
		[]string{"reason"},
	)

	gatewayProxyBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentplane_gateway_proxy_bytes_total",
			Help: "Bytes relayed through the gateway reverse proxy, by agent and direction",
		},
		[]string{"agent_id", "direction"},
	)

	gatewayProxyBlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentplane_gateway_proxy_blocked_methods_total",
			Help: "JSON-RPC methods blocked at the gateway proxy boundary, by method",
		},
		[]string{"method"},
	)

	monitorTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentplane_monitor_ticks_total",
			Help: "Total number of enforcement-monitor sweep ticks completed",
		},
	)

	monitorVpsStoppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentplane_monitor_vps_stopped_total",
			Help: "Total number of VPSes the enforcement monitor stopped for plan+budget exhaustion",
		},
	)

	monitorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentplane_monitor_errors_total",
			Help: "Errors encountered during a monitor tick, by stage",
		},
		[]string{"stage"},
	)
)

// HTTPMiddleware wraps an HTTP handler to record request counters,
// latency histograms, and an in-flight gauge, skipping the /metrics
// endpoint itself to avoid self-referential noise.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &statusCodeWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		endpoint := r.URL.Path
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration)
	})
}

type statusCodeWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *statusCodeWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCodeWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusCodeWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying ResponseWriter to http.ResponseController,
// so a handler further down the chain (the gateway proxy's WebSocket
// upgrade) can still hijack the connection through this wrapper.
func (w *statusCodeWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Handler returns the Prometheus scrape handler mounted at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

// RecordForwardProxyBytes adds to the forward proxy's per-agent,
// per-direction byte counter.
func RecordForwardProxyBytes(agentID, direction string, n int64) {
	if n <= 0 {
		return
	}
	forwardProxyBytesTotal.WithLabelValues(agentID, direction).Add(float64(n))
}

// RecordForwardProxyDenial increments the admission-denial counter.
func RecordForwardProxyDenial(reason string) {
	forwardProxyDenialsTotal.WithLabelValues(reason).Inc()
}

// RecordGatewayProxyBytes adds to the gateway proxy's per-agent,
// per-direction byte counter.
func RecordGatewayProxyBytes(agentID, direction string, n int64) {
	if n <= 0 {
		return
	}
	gatewayProxyBytesTotal.WithLabelValues(agentID, direction).Add(float64(n))
}

// RecordGatewayProxyBlocked increments the blocked-method counter.
func RecordGatewayProxyBlocked(method string) {
	gatewayProxyBlockedTotal.WithLabelValues(method).Inc()
}

// RecordMonitorTick increments the sweep-tick counter.
func RecordMonitorTick() { monitorTicksTotal.Inc() }

// RecordMonitorVpsStopped increments the stopped-VPS counter.
func RecordMonitorVpsStopped() { monitorVpsStoppedTotal.Inc() }

// RecordMonitorError increments the per-stage error counter.
func RecordMonitorError(stage string) { monitorErrorsTotal.WithLabelValues(stage).Inc() }
