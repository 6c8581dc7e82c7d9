package kafkat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ups-tracking/ups-api/pkg/kafka/dlq"
	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/retry"

	"github.com/segmentio/kafka-go"
)

const (
	_replayPollTimeout   = 30 * time.Second
	_replayHandleTimeout = 5 * time.Second
	_readBackoff         = time.Second
)

var _resendPolicy = retry.Policy{
	MaxAttempts: 3,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    300 * time.Millisecond,
}

// DLQProcessor drains the dead-letter topic and feeds each envelope back
// through the status handler. A replay that fails again goes back on the
// topic with its retry count bumped; envelopes at the limit are dropped.
type DLQProcessor struct {
	reader     MessageReader
	dlq        *dlq.DLQ
	handler    func(context.Context, kafka.Message) error
	maxRetries int
	delay      time.Duration
	log        logger.Logger
}

func NewDLQProcessor(
	reader MessageReader,
	dlq *dlq.DLQ,
	handler func(context.Context, kafka.Message) error,
	maxRetries int,
	delay time.Duration,
	log logger.Logger,
) *DLQProcessor {
	return &DLQProcessor{
		reader:     reader,
		dlq:        dlq,
		handler:    handler,
		maxRetries: maxRetries,
		delay:      delay,
		log:        log,
	}
}

func (p *DLQProcessor) Start(ctx context.Context) error {
	defer func() {
		if err := p.reader.Close(); err != nil {
			p.log.Warnw("close dlq reader", "error", err)
		}
	}()

	for ctx.Err() == nil {
		msg, ok := p.poll(ctx)
		if ok {
			p.replay(ctx, msg)
		}
	}

	p.log.Infow("dlq processor stopped")
	return nil
}

func (p *DLQProcessor) poll(ctx context.Context) (kafka.Message, bool) {
	pollCtx, cancel := context.WithTimeout(ctx, _replayPollTimeout)
	defer cancel()

	msg, err := p.reader.ReadMessage(pollCtx)
	switch {
	case err == nil:
		return msg, true
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded):
	default:
		p.log.Errorw("read dlq message", "error", err)
		wait(ctx, _readBackoff)
	}
	return kafka.Message{}, false
}

func (p *DLQProcessor) replay(ctx context.Context, envelope kafka.Message) {
	var dead dlq.Message
	if err := json.Unmarshal(envelope.Value, &dead); err != nil {
		p.log.Errorw("drop undecodable dlq envelope", "offset", envelope.Offset, "error", err)
		return
	}

	meta := dead.Metadata
	log := p.log.With("offset", envelope.Offset, "retry_count", meta.RetryCount)

	if meta.RetryCount >= p.maxRetries {
		log.Infow("dlq envelope exhausted, dropping", "last_error", meta.Error)
		return
	}
	if !wait(ctx, p.delay) {
		return
	}

	original := kafka.Message{
		Topic:     meta.OriginalTopic,
		Partition: meta.Partition,
		Offset:    meta.Offset,
		Key:       envelope.Key,
		Value:     []byte(dead.Payload),
	}

	handleCtx, cancel := context.WithTimeout(ctx, _replayHandleTimeout)
	err := p.handler(handleCtx, original)
	cancel()

	switch {
	case err == nil:
		log.Infow("dlq envelope replayed")
	case dlq.IsPermanent(err):
		log.Warnw("dlq envelope rejected on replay, dropping", "error", err)
	default:
		log.Warnw("dlq replay failed, requeueing", "error", err)
		p.requeue(ctx, original, err, meta.RetryCount+1)
	}
}

func (p *DLQProcessor) requeue(ctx context.Context, msg kafka.Message, cause error, retryCount int) {
	attempts, err := retry.Do(ctx, _resendPolicy, func(ctx context.Context) error {
		return p.dlq.Send(ctx, msg, cause, retryCount)
	})
	if err != nil {
		p.log.Errorw("requeue to dlq failed",
			"offset", msg.Offset,
			"retry_count", retryCount,
			"attempts", attempts,
			"error", err,
		)
	}
}

// wait sleeps for d unless ctx ends first and reports whether it slept.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
