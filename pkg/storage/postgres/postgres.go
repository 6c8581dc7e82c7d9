package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/retry"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	_defaultMaxPoolSize     = 100
	_defaultMaxConnIdleTime = 5 * time.Minute
	_defaultPingTimeout     = 5 * time.Second
)

var _defaultConnectRetry = retry.Policy{
	MaxAttempts: 10,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

// Postgres owns the pgx pool backing the relational shipment store and the
// squirrel builder configured for its placeholder syntax.
type Postgres struct {
	Builder squirrel.StatementBuilderType
	Pool    *pgxpool.Pool

	maxPoolSize     int32
	minPoolSize     int32
	maxConnIdleTime time.Duration
	connectRetry    retry.Policy
}

// NewPostgres opens a pool for dsn and pings it, retrying under the connect
// retry policy until it succeeds or ctx is done.
func NewPostgres(ctx context.Context, dsn string, log logger.Logger, opts ...Option) (*Postgres, error) {
	const op = "storage.postgres.NewPostgres"

	pg := &Postgres{
		maxPoolSize:     _defaultMaxPoolSize,
		maxConnIdleTime: _defaultMaxConnIdleTime,
		connectRetry:    _defaultConnectRetry,
	}

	for _, opt := range opts {
		opt(pg)
	}
	if err := pg.validate(); err != nil {
		return nil, fmt.Errorf("%s: validation: %w", op, err)
	}

	pg.Builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: parse pool config: %w", op, err)
	}
	poolConfig.MaxConns = pg.maxPoolSize
	poolConfig.MinConns = pg.minPoolSize
	poolConfig.MaxConnIdleTime = pg.maxConnIdleTime

	attempts, err := retry.Do(ctx, pg.connectRetry,
		func(ctx context.Context) error {
			return pg.connect(ctx, poolConfig)
		},
		retry.Notify(func(attempt int, delay time.Duration, err error) {
			log.Warnw("PostgreSQL connection attempt failed",
				"operation", op,
				"next_attempt", attempt,
				"retry_after", delay.String(),
				"error", err,
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: connect after %d attempts: %w", op, attempts, err)
	}

	log.Infow("connected to PostgreSQL",
		"max_conns", pg.maxPoolSize,
		"attempts", attempts,
	)
	return pg, nil
}

func (p *Postgres) connect(ctx context.Context, poolConfig *pgxpool.Config) error {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, _defaultPingTimeout)
	defer cancel()

	if err = pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	p.Pool = pool
	return nil
}

// DB exposes the pool through database/sql for goose migrations.
func (p *Postgres) DB() *sql.DB {
	return stdlib.OpenDBFromPool(p.Pool)
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
