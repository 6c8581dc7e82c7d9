package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ Transaction = (*transactionMetrics)(nil)
	_ Cache       = (*cacheMetrics)(nil)
)

type transactionMetrics struct {
	latency  *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func newTransactionMetrics(b builder) *transactionMetrics {
	return &transactionMetrics{
		latency: b.histogram("store_operation_duration_seconds",
			"Shipment store unit-of-work latency in seconds",
			[]float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5}, "operation"),
		retries: b.counter("store_operation_retries_total",
			"Store operations retried after a serialization or deadlock error", "operation"),
		failures: b.counter("store_operation_failures_total",
			"Store operations that failed for good", "operation"),
	}
}

func (m *transactionMetrics) ObserveDuration(operation string, took time.Duration) {
	m.latency.WithLabelValues(operation).Observe(took.Seconds())
}

func (m *transactionMetrics) IncrementRetries(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}

func (m *transactionMetrics) IncrementFailures(operation string) {
	m.failures.WithLabelValues(operation).Inc()
}

type cacheMetrics struct {
	lookups   *prometheus.CounterVec
	evictions *prometheus.CounterVec
	errors    *prometheus.CounterVec
	entries   *prometheus.GaugeVec
}

func newCacheMetrics(b builder) *cacheMetrics {
	return &cacheMetrics{
		lookups: b.counter("cache_lookups_total",
			"Cache lookups by cache name and result (hit or miss)", "cache", "result"),
		evictions: b.counter("cache_evictions_total",
			"Entries dropped from a cache by reason", "cache", "reason"),
		errors: b.counter("cache_errors_total",
			"Failed calls to a remote cache backend", "cache", "operation"),
		entries: b.gauge("cache_entries",
			"Entries currently held by an in-process cache", "cache"),
	}
}

func (m *cacheMetrics) Hit(name string)  { m.lookups.WithLabelValues(name, "hit").Inc() }
func (m *cacheMetrics) Miss(name string) { m.lookups.WithLabelValues(name, "miss").Inc() }

func (m *cacheMetrics) Eviction(name, reason string) {
	m.evictions.WithLabelValues(name, reason).Inc()
}

func (m *cacheMetrics) Size(name string, entries int) {
	m.entries.WithLabelValues(name).Set(float64(entries))
}

func (m *cacheMetrics) Error(name, operation string) {
	m.errors.WithLabelValues(name, operation).Inc()
}
