package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"
	"github.com/ups-tracking/ups-api/pkg/retry"

	"github.com/segmentio/kafka-go"
)

var _defaultRetryPolicy = retry.Policy{
	MaxAttempts: 10,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// Envelope headers let operators filter the dead-letter topic without
// decoding payloads.
const (
	HeaderSourceTopic = "x-source-topic"
	HeaderRetryCount  = "x-retry-count"
)

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Metadata travels with every dead-lettered payload.
type Metadata struct {
	OriginalTopic string `json:"original_topic"`
	Partition     int    `json:"partition"`
	Offset        int64  `json:"offset"`
	RetryCount    int    `json:"retry_count"`
	Error         string `json:"error"`
	Timestamp     string `json:"timestamp"`
}

type Message struct {
	Metadata Metadata `json:"metadata"`
	Payload  string   `json:"payload"`
}

type DLQ struct {
	writer  Writer
	topic   string
	log     logger.Logger
	metrics metric.DLQ

	policy retry.Policy
}

func NewDLQ(writer Writer, topic string, log logger.Logger, metrics metric.DLQ, opts ...Option) (*DLQ, error) {
	dlq := &DLQ{
		writer:  writer,
		topic:   topic,
		log:     log,
		metrics: metrics,

		policy: _defaultRetryPolicy,
	}

	for _, opt := range opts {
		opt(dlq)
	}

	if err := dlq.validate(); err != nil {
		return nil, fmt.Errorf("kafka.dlq.NewDLQ: validation: %w", err)
	}

	return dlq, nil
}

func (d *DLQ) Close() error {
	if err := d.writer.Close(); err != nil {
		return fmt.Errorf("kafka.dlq.Close: %w", err)
	}
	return nil
}

// Send writes msg to the dead-letter topic inside an envelope recording where
// it came from, why it failed and how many times it has been tried.
func (d *DLQ) Send(ctx context.Context, msg kafka.Message, cause error, retryCount int) error {
	const op = "kafka.dlq.Send"

	out, err := envelope(msg, cause, retryCount, time.Now())
	if err != nil {
		d.metrics.DLError(d.topic, "marshal_failed")
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = d.writer.WriteMessages(ctx, out); err != nil {
		d.metrics.DLError(d.topic, "write_failed")
		d.log.LogAttrs(ctx, logger.ErrorLevel, "dead-letter write failed",
			logger.String("dlq_topic", d.topic),
			logger.Int64("offset", msg.Offset),
			logger.Err(err),
		)
		return fmt.Errorf("%s: write: %w", op, err)
	}

	d.metrics.DLSent(d.topic, msg.Topic, retryCount)
	d.log.LogAttrs(ctx, logger.InfoLevel, "message dead-lettered",
		logger.String("dlq_topic", d.topic),
		logger.String("source_topic", msg.Topic),
		logger.Int64("offset", msg.Offset),
		logger.Int("retry_count", retryCount),
	)
	return nil
}

func envelope(msg kafka.Message, cause error, retryCount int, at time.Time) (kafka.Message, error) {
	value, err := json.Marshal(Message{
		Metadata: Metadata{
			OriginalTopic: msg.Topic,
			Partition:     msg.Partition,
			Offset:        msg.Offset,
			RetryCount:    retryCount,
			Error:         cause.Error(),
			Timestamp:     at.UTC().Format(time.RFC3339),
		},
		Payload: string(msg.Value),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal envelope: %w", err)
	}

	return kafka.Message{
		Key:   msg.Key,
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderSourceTopic, Value: []byte(msg.Topic)},
			{Key: HeaderRetryCount, Value: []byte(strconv.Itoa(retryCount))},
		},
	}, nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ProcessWithRetry calls handler until it succeeds, returns a permanent
// error, or the retry policy is used up. It returns the last handler error
// and the number of attempts made; dead-lettering is left to the caller.
func ProcessWithRetry(
	ctx context.Context,
	msg kafka.Message,
	handler func(context.Context, kafka.Message) error,
	dlq *DLQ,
	log logger.Logger,
) (int, error) {
	const op = "kafka.dlq.ProcessWithRetry"

	attempts, err := retry.Do(ctx, dlq.policy,
		func(ctx context.Context) error {
			handleErr := handler(ctx, msg)
			if handleErr != nil {
				log.LogAttrs(ctx, logger.WarnLevel, "message processing failed",
					logger.String("operation", op),
					logger.Int64("offset", msg.Offset),
					logger.Err(handleErr),
				)
			}
			return handleErr
		},
		retry.If(func(err error) bool { return !IsPermanent(err) }),
		retry.Notify(func(attempt int, delay time.Duration, err error) {
			log.LogAttrs(ctx, logger.InfoLevel, "retrying message processing",
				logger.String("operation", op),
				logger.Int("attempt", attempt),
				logger.String("retry_after", delay.String()),
				logger.Err(err),
			)
		}),
	)
	switch {
	case err == nil:
		return attempts, nil
	case ctx.Err() != nil:
		return attempts, fmt.Errorf("%s: context done: %w", op, ctx.Err())
	case IsPermanent(err):
		return attempts, err
	}

	dlq.metrics.DLRetryCount(msg.Topic, attempts)
	return attempts, err
}
