// Package kafka builds segmentio readers and writers that report through the
// service logger.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const _probeTimeout = 5 * time.Second

type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type WriterConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// NewReader probes every broker before handing back a consumer-group reader,
// so a misconfigured cluster fails startup instead of the first fetch.
func NewReader(ctx context.Context, cfg ReaderConfig, log logger.Logger) (*kafka.Reader, error) {
	if err := Probe(ctx, cfg.Brokers); err != nil {
		return nil, fmt.Errorf("kafka.NewReader: %w", err)
	}

	attrs := []logger.Attr{
		logger.String("topic", cfg.Topic),
		logger.String("group_id", cfg.GroupID),
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		Logger:      forward(log, logger.DebugLevel, "kafka reader", attrs),
		ErrorLogger: forward(log, logger.ErrorLevel, "kafka reader failure", attrs),
	}), nil
}

// NewWriter returns a synchronous writer. Keys are hashed onto partitions so
// updates for one tracking number stay ordered.
func NewWriter(cfg WriterConfig, log logger.Logger) *kafka.Writer {
	attrs := []logger.Attr{logger.String("topic", cfg.Topic)}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		RequiredAcks: kafka.RequireAll,
		Logger:       forward(log, logger.DebugLevel, "kafka writer", attrs),
		ErrorLogger:  forward(log, logger.ErrorLevel, "kafka writer failure", attrs),
	}
}

// Probe dials each broker once and reports every one that refused.
func Probe(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("kafka.Probe: no brokers configured")
	}

	dialer := &kafka.Dialer{Timeout: _probeTimeout}
	var errs []error
	for _, broker := range brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("dial %s: %w", broker, err))
			continue
		}
		_ = conn.Close()
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("kafka.Probe: %w", err)
	}
	return nil
}

func forward(log logger.Logger, level logger.Level, msg string, attrs []logger.Attr) kafka.LoggerFunc {
	return func(format string, args ...any) {
		fields := append([]logger.Attr{logger.String("detail", fmt.Sprintf(format, args...))}, attrs...)
		log.LogAttrs(context.Background(), level, msg, fields...)
	}
}
