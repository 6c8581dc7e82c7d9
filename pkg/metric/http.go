package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var _ HTTP = (*httpMetrics)(nil)

type httpMetrics struct {
	requests *prometheus.CounterVec
	slow     *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newHTTPMetrics(b builder) *httpMetrics {
	return &httpMetrics{
		requests: b.counter("http_requests_total",
			"HTTP requests by method, route and status class", "method", "path", "status"),
		slow: b.counter("http_slow_requests_total",
			"HTTP requests slower than the configured threshold", "method", "path", "status"),
		latency: b.histogram("http_request_duration_seconds",
			"HTTP request latency in seconds", prometheus.DefBuckets, "method", "path", "status"),
	}
}

func (m *httpMetrics) Request(method, route string, status int, took time.Duration) {
	class := statusClass(status)
	m.requests.WithLabelValues(method, route, class).Inc()
	m.latency.WithLabelValues(method, route, class).Observe(took.Seconds())
}

func (m *httpMetrics) SlowRequest(method, route string, status int, _ time.Duration) {
	m.slow.WithLabelValues(method, route, statusClass(status)).Inc()
}

// statusClass collapses a status code to 2xx..5xx to keep label cardinality flat.
func statusClass(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "5xx"
	case status >= http.StatusBadRequest:
		return "4xx"
	case status >= http.StatusMultipleChoices:
		return "3xx"
	default:
		return "2xx"
	}
}
