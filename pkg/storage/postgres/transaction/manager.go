// Package transaction runs units of work inside Postgres transactions and
// replays them when the server reports a transient conflict.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"
	"github.com/ups-tracking/ups-api/pkg/retry"
	"github.com/ups-tracking/ups-api/pkg/storage/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var _defaultRetryPolicy = retry.Policy{
	MaxAttempts: 3,
	BaseDelay:   10 * time.Millisecond,
	MaxDelay:    100 * time.Millisecond,
}

// SQLSTATE classes worth replaying: serialization_failure, deadlock_detected
// and the connection_exception family.
var _transientCodes = map[string]struct{}{
	"40001": {}, "40P01": {},
	"08000": {}, "08001": {}, "08003": {}, "08004": {}, "08006": {}, "08007": {}, "08P01": {},
}

type Manager interface {
	InTx(ctx context.Context, name string, fn func(q postgres.Executor) error) error
}

type manager struct {
	pg      *postgres.Postgres
	log     logger.Logger
	metrics metric.Transaction

	policy    retry.Policy
	isolation pgx.TxIsoLevel
}

func NewManager(
	pg *postgres.Postgres,
	log logger.Logger,
	metrics metric.Transaction,
	opts ...Option,
) (Manager, error) {
	tm := &manager{
		pg:        pg,
		log:       log,
		metrics:   metrics,
		policy:    _defaultRetryPolicy,
		isolation: pgx.ReadCommitted,
	}
	for _, opt := range opts {
		opt(tm)
	}

	if err := tm.validate(); err != nil {
		return nil, fmt.Errorf("storage.postgres.transaction.NewManager: %w", err)
	}
	return tm, nil
}

// InTx runs fn in a read-write transaction and commits it. The whole unit,
// including fn, is replayed on transient failures; errors returned by fn are
// otherwise passed back after a single attempt.
func (tm *manager) InTx(ctx context.Context, name string, fn func(q postgres.Executor) error) error {
	return tm.withRetry(ctx, name, func(ctx context.Context) error {
		return tm.attempt(ctx, name, fn)
	})
}

func (tm *manager) attempt(ctx context.Context, name string, fn func(q postgres.Executor) error) error {
	tx, err := tm.pg.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   tm.isolation,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return stepError(name, "begin", err)
	}
	defer tm.rollback(ctx, tx, name)

	if err = fn(tx); err != nil {
		return stepError(name, "execute", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return stepError(name, "commit", err)
	}
	return nil
}

func stepError(name, step string, err error) error {
	return fmt.Errorf("transaction %s: %s: %w", name, step, err)
}

// rollback is a no-op after a successful commit.
func (tm *manager) rollback(ctx context.Context, tx pgx.Tx, name string) {
	err := tx.Rollback(context.WithoutCancel(ctx))
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return
	}
	tm.log.LogAttrs(ctx, logger.ErrorLevel, "rollback failed",
		logger.String("transaction", name),
		logger.Err(err),
	)
}

func (tm *manager) withRetry(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	const op = "storage.postgres.transaction.withRetry"

	defer func(start time.Time) {
		tm.metrics.ObserveDuration(name, time.Since(start))
	}(time.Now())

	attempts, err := retry.Do(ctx, tm.policy, fn,
		retry.If(isTransient),
		retry.Notify(func(attempt int, delay time.Duration, err error) {
			tm.metrics.IncrementRetries(name)
			tm.log.LogAttrs(ctx, logger.WarnLevel, "replaying transaction",
				logger.String("transaction", name),
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", tm.policy.MaxAttempts),
				logger.Duration("backoff", delay),
				logger.Err(err),
			)
		}),
	)
	switch {
	case err == nil:
		return nil
	case isTransient(err):
		tm.metrics.IncrementFailures(name)
		return fmt.Errorf("%s: %s gave up after %d attempts: %w", op, name, attempts, err)
	default:
		tm.metrics.IncrementFailures(name)
		return err
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return true
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	_, ok := _transientCodes[pgErr.Code]
	return ok
}
