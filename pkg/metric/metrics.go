// Package metric defines the service's instrumentation surface and its
// Prometheus implementation.
package metric

import (
	"net/http"
	"time"
)

//go:generate mockgen -source=metrics.go -destination=mock/metrics.go -package=mock_metric

const _namespace = "ups"

type (
	// Factory hands out one instance of every metric family.
	Factory interface {
		HTTP() HTTP
		Transaction() Transaction
		Cache() Cache
		Kafka() Kafka
		DLQ() DLQ
		Upload() Upload
		Tracking() Tracking
		Events() Events
		Handler() http.Handler
	}

	// HTTP records requests by route template, never by raw path.
	HTTP interface {
		Request(method, route string, status int, took time.Duration)
		SlowRequest(method, route string, status int, took time.Duration)
	}

	// Transaction covers retried unit-of-work calls against the shipment store.
	Transaction interface {
		ObserveDuration(operation string, took time.Duration)
		IncrementRetries(operation string)
		IncrementFailures(operation string)
	}

	Cache interface {
		Hit(name string)
		Miss(name string)
		Eviction(name, reason string)
		Size(name string, entries int)
		Error(name, operation string)
	}

	Kafka interface {
		MessageProcessed(topic string, partition int)
		MessageFailed(topic string, partition int, reason string)
		ConsumerGroupLag(topic string, partition int, lag int64)
	}

	DLQ interface {
		DLSent(dlqTopic, sourceTopic string, attempts int)
		DLError(dlqTopic, reason string)
		DLRetryCount(sourceTopic string, attempts int)
	}

	Upload interface {
		Uploaded(folder string, size int64, took time.Duration)
		Failed(folder, reason string)
	}

	Tracking interface {
		Generated(attempts int)
		Collision(source string)
		Exhausted()
	}

	Events interface {
		Published(eventType string)
		PublishFailed(eventType string)
	}
)
