package metric

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ Kafka  = (*kafkaMetrics)(nil)
	_ DLQ    = (*dlqMetrics)(nil)
	_ Events = (*eventMetrics)(nil)
)

type kafkaMetrics struct {
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	lag       *prometheus.GaugeVec
}

func newKafkaMetrics(b builder) *kafkaMetrics {
	return &kafkaMetrics{
		processed: b.counter("kafka_messages_processed_total",
			"Status updates applied from Kafka", "topic", "partition"),
		failed: b.counter("kafka_messages_failed_total",
			"Status updates that could not be applied, by reason", "topic", "partition", "reason"),
		lag: b.gauge("kafka_consumer_group_lag",
			"Messages behind the partition high-water mark after the last read", "topic", "partition"),
	}
}

func (m *kafkaMetrics) MessageProcessed(topic string, partition int) {
	m.processed.WithLabelValues(topic, strconv.Itoa(partition)).Inc()
}

func (m *kafkaMetrics) MessageFailed(topic string, partition int, reason string) {
	m.failed.WithLabelValues(topic, strconv.Itoa(partition), reason).Inc()
}

func (m *kafkaMetrics) ConsumerGroupLag(topic string, partition int, lag int64) {
	m.lag.WithLabelValues(topic, strconv.Itoa(partition)).Set(float64(lag))
}

type dlqMetrics struct {
	sent     *prometheus.CounterVec
	attempts *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

func newDLQMetrics(b builder) *dlqMetrics {
	return &dlqMetrics{
		sent: b.counter("dlq_messages_sent_total",
			"Messages parked on a dead-letter topic", "dlq_topic", "original_topic"),
		attempts: b.histogram("dlq_retry_count",
			"Handling attempts made before a message was given up on",
			[]float64{1, 2, 3, 5, 10, 20}, "original_topic"),
		errors: b.counter("dlq_errors_total",
			"Dead-letter writes that failed, by reason", "dlq_topic", "reason"),
	}
}

func (m *dlqMetrics) DLSent(dlqTopic, sourceTopic string, attempts int) {
	m.sent.WithLabelValues(dlqTopic, sourceTopic).Inc()
	m.DLRetryCount(sourceTopic, attempts)
}

func (m *dlqMetrics) DLRetryCount(sourceTopic string, attempts int) {
	m.attempts.WithLabelValues(sourceTopic).Observe(float64(attempts))
}

func (m *dlqMetrics) DLError(dlqTopic, reason string) {
	m.errors.WithLabelValues(dlqTopic, reason).Inc()
}

type eventMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

func newEventMetrics(b builder) *eventMetrics {
	return &eventMetrics{
		published: b.counter("shipment_events_published_total",
			"Shipment lifecycle events written to Kafka", "type"),
		failed: b.counter("shipment_events_failed_total",
			"Shipment lifecycle events that could not be written", "type"),
	}
}

func (m *eventMetrics) Published(eventType string)     { m.published.WithLabelValues(eventType).Inc() }
func (m *eventMetrics) PublishFailed(eventType string) { m.failed.WithLabelValues(eventType).Inc() }
