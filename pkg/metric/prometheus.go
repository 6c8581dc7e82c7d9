package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Factory = (*prometheusFactory)(nil)

type prometheusFactory struct {
	registry *prometheus.Registry

	http        *httpMetrics
	transaction *transactionMetrics
	cache       *cacheMetrics
	kafka       *kafkaMetrics
	dlq         *dlqMetrics
	upload      *uploadMetrics
	tracking    *trackingMetrics
	events      *eventMetrics
}

// NewFactory registers every family on a fresh registry, so two factories in
// one process never collide.
func NewFactory() Factory {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b := builder{promauto.With(registry)}

	return &prometheusFactory{
		registry:    registry,
		http:        newHTTPMetrics(b),
		transaction: newTransactionMetrics(b),
		cache:       newCacheMetrics(b),
		kafka:       newKafkaMetrics(b),
		dlq:         newDLQMetrics(b),
		upload:      newUploadMetrics(b),
		tracking:    newTrackingMetrics(b),
		events:      newEventMetrics(b),
	}
}

func (f *prometheusFactory) HTTP() HTTP { return f.http }
func (f *prometheusFactory) Transaction() Transaction { return f.transaction }
func (f *prometheusFactory) Cache() Cache { return f.cache }
func (f *prometheusFactory) Kafka() Kafka { return f.kafka }
func (f *prometheusFactory) DLQ() DLQ { return f.dlq }
func (f *prometheusFactory) Upload() Upload { return f.upload }
func (f *prometheusFactory) Tracking() Tracking { return f.tracking }
func (f *prometheusFactory) Events() Events { return f.events }

func (f *prometheusFactory) Handler() http.Handler {
	return promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// builder registers ups_-prefixed collectors on the factory's registry.
type builder struct {
	f promauto.Factory
}

func (b builder) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return b.f.NewCounterVec(prometheus.CounterOpts{Namespace: _namespace, Name: name, Help: help}, labels)
}

func (b builder) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return b.f.NewGaugeVec(prometheus.GaugeOpts{Namespace: _namespace, Name: name, Help: help}, labels)
}

func (b builder) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return b.f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: _namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}
