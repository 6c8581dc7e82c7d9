package kafkat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/pkg/kafka/dlq"
	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source=status_consumer.go -destination=mock/kafka.go -package=mock_kafkat

const _handleTimeout = 5 * time.Second

type (
	MessageReader interface {
		ReadMessage(ctx context.Context) (kafka.Message, error)
		Close() error
	}

	MessageWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	StatusService interface {
		ChangeStatusByTrackingNumber(
			ctx context.Context,
			trackingNumber string,
			requested entity.Status,
		) (*entity.Shipment, error)
	}
)

// StatusConsumer applies carrier scan updates read from Kafka to shipments.
// Updates that keep failing are dead-lettered.
type StatusConsumer struct {
	reader   MessageReader
	dlq      *dlq.DLQ
	svc      StatusService
	validate *validator.Validate
	metric   metric.Kafka
	log      logger.Logger
}

func NewStatusConsumer(
	reader MessageReader,
	dlq *dlq.DLQ,
	svc StatusService,
	metric metric.Kafka,
	log logger.Logger,
) *StatusConsumer {
	return &StatusConsumer{
		reader:   reader,
		dlq:      dlq,
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metric:   metric,
		log:      log,
	}
}

func (c *StatusConsumer) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return c.run(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()
		c.log.Infow("shutting down status consumer")
		return c.reader.Close()
	})

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("transport.kafka.status_consumer.Start: %w", err)
	}
	return nil
}

func (c *StatusConsumer) run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Errorw("kafka read failed", "error", err)
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *StatusConsumer) processMessage(ctx context.Context, msg kafka.Message) {
	c.log.Debugw("processing status update",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	if msg.HighWaterMark > 0 {
		c.metric.ConsumerGroupLag(msg.Topic, msg.Partition, max(msg.HighWaterMark-msg.Offset-1, 0))
	}

	attempts, err := dlq.ProcessWithRetry(ctx, msg, c.HandleMessage, c.dlq, c.log)
	if err == nil {
		c.metric.MessageProcessed(msg.Topic, msg.Partition)
		return
	}
	if ctx.Err() != nil {
		return
	}

	reason := "retry_limit_exceeded"
	if dlq.IsPermanent(err) {
		reason = "rejected"
	}
	c.metric.MessageFailed(msg.Topic, msg.Partition, reason)

	if dlqErr := c.dlq.Send(ctx, msg, err, attempts); dlqErr != nil {
		c.log.Errorw("critical: failed to dead-letter status update",
			"offset", msg.Offset,
			"original_error", err,
			"dlq_error", dlqErr,
		)
	}
}

// HandleMessage decodes one status update and applies it. Malformed updates
// and domain rejections are returned as permanent errors.
func (c *StatusConsumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	const op = "transport.kafka.status_consumer.HandleMessage"

	var update entity.StatusUpdate
	if err := json.Unmarshal(msg.Value, &update); err != nil {
		return dlq.Permanent(fmt.Errorf("%s: unmarshal status update: %w", op, err))
	}
	update.TrackingNumber = strings.TrimSpace(update.TrackingNumber)

	if err := c.validate.Struct(update); err != nil {
		return dlq.Permanent(fmt.Errorf("%s: %w: %w", op, entity.ErrInvalidData, err))
	}

	handleCtx, cancel := context.WithTimeout(ctx, _handleTimeout)
	defer cancel()

	shipment, err := c.svc.ChangeStatusByTrackingNumber(handleCtx, update.TrackingNumber, update.Status)
	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		if errors.Is(err, entity.ErrDataNotFound) || errors.Is(err, entity.ErrInvalidStatus) {
			return dlq.Permanent(err)
		}
		return err
	}

	c.log.Infow("status update applied",
		"tracking_number", shipment.TrackingNumber,
		"status", shipment.Status.String(),
		"location", update.Location,
		"offset", msg.Offset,
	)

	return nil
}
