// Command status-producer publishes fake carrier scans to the status update
// topic for local testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/pkg/kafka"
	"github.com/ups-tracking/ups-api/pkg/logger"

	"github.com/brianvoe/gofakeit/v7"
	kafkago "github.com/segmentio/kafka-go"
)

const _sendTimeout = 5 * time.Second

var _scanStatuses = []entity.Status{
	entity.StatusInTransit,
	entity.StatusDelivered,
	entity.StatusCancelled,
}

type options struct {
	brokers  []string
	topic    string
	tracking []string
	count    int
	interval time.Duration
}

func parseFlags() options {
	var (
		opts     options
		brokers  string
		tracking string
	)
	flag.StringVar(&brokers, "brokers", "kafka:29092", "comma separated bootstrap brokers")
	flag.StringVar(&opts.topic, "topic", "shipment.status-updates", "status update topic")
	flag.StringVar(&tracking, "tracking", "", "comma separated tracking numbers; random UPS- codes when empty")
	flag.IntVar(&opts.count, "count", 1, "number of updates to send")
	flag.DurationVar(&opts.interval, "interval", time.Second, "pause between updates")
	flag.Parse()

	opts.brokers = splitList(brokers)
	opts.tracking = splitList(tracking)
	return opts
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	opts := parseFlags()

	log, err := logger.New(logger.Config{Service: "status-producer", Env: "local"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      opts.brokers,
		Topic:        opts.topic,
		WriteTimeout: _sendTimeout,
	}, log)
	defer writer.Close()

	log.Infow("status producer starting",
		"brokers", opts.brokers,
		"topic", opts.topic,
		"count", opts.count,
		"interval", opts.interval.String(),
	)

	sent := run(ctx, writer, opts, log)
	log.Infow("status producer finished", "sent", sent, "requested", opts.count)
}

func run(ctx context.Context, writer *kafkago.Writer, opts options, log logger.Logger) int {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	sent := 0
	for i := range opts.count {
		if i > 0 {
			select {
			case <-ctx.Done():
				return sent
			case <-ticker.C:
			}
		}

		update := fakeUpdate(opts.tracking)
		if err := send(ctx, writer, update); err != nil {
			log.Errorw("send status update", "tracking_number", update.TrackingNumber, "error", err)
			continue
		}
		sent++
		log.Infow("status update sent",
			"tracking_number", update.TrackingNumber,
			"status", update.Status.String(),
			"location", update.Location,
		)
	}
	return sent
}

func send(ctx context.Context, writer *kafkago.Writer, update entity.StatusUpdate) error {
	value, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, _sendTimeout)
	defer cancel()

	return writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(update.TrackingNumber),
		Value: value,
	})
}

func fakeUpdate(tracking []string) entity.StatusUpdate {
	number := fmt.Sprintf("UPS-%06d", gofakeit.Number(100000, 999999))
	if len(tracking) > 0 {
		number = tracking[gofakeit.Number(0, len(tracking)-1)]
	}

	return entity.StatusUpdate{
		TrackingNumber: number,
		Status:         _scanStatuses[gofakeit.Number(0, len(_scanStatuses)-1)],
		Location:       gofakeit.City() + ", " + gofakeit.StateAbr(),
		ScannedAt:      time.Now().UTC(),
	}
}
