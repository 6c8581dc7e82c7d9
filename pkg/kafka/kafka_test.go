package kafka_test

import (
	"context"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ups-tracking/ups-api/pkg/kafka"
	"github.com/ups-tracking/ups-api/pkg/logger"
)

func TestProbe(t *testing.T) {
	testCases := []struct {
		desc    string
		brokers []string
		want    string
	}{
		{desc: "NoBrokers", want: "no brokers configured"},
		{desc: "Unreachable", brokers: []string{"127.0.0.1:1"}, want: "dial 127.0.0.1:1"},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := kafka.Probe(context.Background(), tc.brokers)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewReader_UnreachableBroker(t *testing.T) {
	_, err := kafka.NewReader(context.Background(), kafka.ReaderConfig{
		Brokers: []string{"127.0.0.1:1"},
		Topic:   "shipment.status-updates",
		GroupID: "ups-api",
	}, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.NewReader")
}

func TestNewWriter(t *testing.T) {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "shipment.events",
	}, logger.NewNop())
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, "shipment.events", w.Topic)
	assert.Equal(t, kafkago.RequireAll, w.RequiredAcks)
}
