package kafkat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"

	"github.com/segmentio/kafka-go"
)

// EventPublisher writes shipment lifecycle events keyed by tracking number,
// so every event of one shipment lands on the same partition.
type EventPublisher struct {
	writer MessageWriter
	metric metric.Events
	log    logger.Logger
}

func NewEventPublisher(writer MessageWriter, metric metric.Events, log logger.Logger) *EventPublisher {
	return &EventPublisher{
		writer: writer,
		metric: metric,
		log:    log,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, event entity.ShipmentEvent) error {
	const op = "transport.kafka.event_publisher.Publish"

	value, err := json.Marshal(event)
	if err != nil {
		p.metric.PublishFailed(string(event.Type))
		return fmt.Errorf("%s: marshal event: %w", op, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TrackingNumber),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		p.metric.PublishFailed(string(event.Type))
		return fmt.Errorf("%s: write message: %w", op, err)
	}

	p.metric.Published(string(event.Type))
	p.log.LogAttrs(ctx, logger.DebugLevel, "shipment event published",
		logger.String("type", string(event.Type)),
		logger.String("tracking_number", event.TrackingNumber),
	)
	return nil
}

func (p *EventPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("transport.kafka.event_publisher.Close: %w", err)
	}
	return nil
}
