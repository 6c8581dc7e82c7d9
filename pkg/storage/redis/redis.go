package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/retry"

	goredis "github.com/redis/go-redis/v9"
)

const (
	_defaultDialTimeout = 5 * time.Second
	_defaultPoolSize    = 20
	_defaultPingTimeout = 2 * time.Second
)

var _defaultConnectRetry = retry.Policy{
	MaxAttempts: 5,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    3 * time.Second,
}

type Redis struct {
	Client *goredis.Client

	password     string
	db           int
	poolSize     int
	dialTimeout  time.Duration
	connectRetry retry.Policy
}

// NewRedis dials addr and waits for PING to succeed under the connect retry
// policy.
func NewRedis(ctx context.Context, addr string, log logger.Logger, opts ...Option) (*Redis, error) {
	const op = "storage.redis.NewRedis"

	r := &Redis{
		poolSize:     _defaultPoolSize,
		dialTimeout:  _defaultDialTimeout,
		connectRetry: _defaultConnectRetry,
	}
	for _, opt := range opts {
		opt(r)
	}
	if addr == "" {
		return nil, fmt.Errorf("%s: address is empty", op)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("%s: validation: %w", op, err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    r.password,
		DB:          r.db,
		PoolSize:    r.poolSize,
		DialTimeout: r.dialTimeout,
	})

	attempts, err := retry.Do(ctx, r.connectRetry, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, _defaultPingTimeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}, retry.Notify(func(attempt int, delay time.Duration, err error) {
		log.Warnw("Redis ping failed",
			"operation", op,
			"next_attempt", attempt,
			"retry_after", delay.String(),
			"error", err,
		)
	}))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: ping after %d attempts: %w", op, attempts, err)
	}

	r.Client = client
	log.Infow("connected to Redis", "addr", addr, "db", r.db, "attempts", attempts)
	return r, nil
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	if err := r.Client.Close(); err != nil {
		return fmt.Errorf("storage.redis.Close: %w", err)
	}
	return nil
}
