package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/retry"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	_defaultMaxPoolSize    = 100
	_defaultConnectTimeout = 10 * time.Second
	_defaultPingTimeout    = 5 * time.Second
)

var _defaultConnectRetry = retry.Policy{
	MaxAttempts: 5,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// Mongo holds the client and the database the document store lives in.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database

	maxPoolSize    uint64
	connectTimeout time.Duration
	connectRetry   retry.Policy
}

// NewMongo connects to uri and pings the primary before returning the handle
// for database. Failed pings are retried under the connect retry policy.
func NewMongo(ctx context.Context, uri, database string, log logger.Logger, opts ...Option) (*Mongo, error) {
	const op = "storage.mongo.NewMongo"

	m := &Mongo{
		maxPoolSize:    _defaultMaxPoolSize,
		connectTimeout: _defaultConnectTimeout,
		connectRetry:   _defaultConnectRetry,
	}

	for _, opt := range opts {
		opt(m)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: validation: %w", op, err)
	}
	if database == "" {
		return nil, fmt.Errorf("%s: database name is empty", op)
	}

	client, err := mongo.Connect(
		options.Client().
			ApplyURI(uri).
			SetMaxPoolSize(m.maxPoolSize).
			SetConnectTimeout(m.connectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	attempts, err := retry.Do(ctx, m.connectRetry, func(ctx context.Context) error {
		return ping(ctx, client)
	}, retry.Notify(func(attempt int, delay time.Duration, err error) {
		log.Warnw("MongoDB ping failed",
			"operation", op,
			"next_attempt", attempt,
			"retry_after", delay.String(),
			"error", err,
		)
	}))
	if err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("%s: ping after %d attempts: %w", op, attempts, err)
	}

	m.Client = client
	m.Database = client.Database(database)

	log.Infow("connected to MongoDB", "database", database, "attempts", attempts)
	return m, nil
}

func ping(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, _defaultPingTimeout)
	defer cancel()
	return client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.Client == nil {
		return nil
	}
	if err := m.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("storage.mongo.Close: %w", err)
	}
	return nil
}
