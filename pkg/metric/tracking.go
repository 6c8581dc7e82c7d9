package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ Tracking = (*trackingMetrics)(nil)
	_ Upload   = (*uploadMetrics)(nil)
)

type trackingMetrics struct {
	attempts   *prometheus.HistogramVec
	collisions *prometheus.CounterVec
	exhausted  *prometheus.CounterVec
}

func newTrackingMetrics(b builder) *trackingMetrics {
	return &trackingMetrics{
		attempts: b.histogram("tracking_number_attempts",
			"Candidates drawn before a free tracking number was found",
			[]float64{1, 2, 3, 5, 10, 20}),
		collisions: b.counter("tracking_number_collisions_total",
			"Tracking number collisions by where they were caught (precheck or constraint)", "source"),
		exhausted: b.counter("tracking_number_exhausted_total",
			"Creations that ran out of tracking number attempts"),
	}
}

func (m *trackingMetrics) Generated(attempts int) {
	m.attempts.WithLabelValues().Observe(float64(attempts))
}

func (m *trackingMetrics) Collision(source string) { m.collisions.WithLabelValues(source).Inc() }
func (m *trackingMetrics) Exhausted()              { m.exhausted.WithLabelValues().Inc() }

type uploadMetrics struct {
	uploads  *prometheus.CounterVec
	failures *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newUploadMetrics(b builder) *uploadMetrics {
	return &uploadMetrics{
		uploads: b.counter("image_uploads_total",
			"Images stored in object storage", "folder"),
		failures: b.counter("image_upload_failures_total",
			"Image uploads that failed, by reason", "folder", "reason"),
		bytes: b.counter("image_upload_bytes_total",
			"Image bytes written to object storage", "folder"),
		latency: b.histogram("image_upload_duration_seconds",
			"Latency of successful image uploads in seconds",
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}, "folder"),
	}
}

func (m *uploadMetrics) Uploaded(folder string, size int64, took time.Duration) {
	m.uploads.WithLabelValues(folder).Inc()
	m.bytes.WithLabelValues(folder).Add(float64(size))
	m.latency.WithLabelValues(folder).Observe(took.Seconds())
}

func (m *uploadMetrics) Failed(folder, reason string) {
	m.failures.WithLabelValues(folder, reason).Inc()
}
