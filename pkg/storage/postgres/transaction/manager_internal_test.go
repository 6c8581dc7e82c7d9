package transaction

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/pkg/logger"
	"github.com/ups-tracking/ups-api/pkg/metric"
	"github.com/ups-tracking/ups-api/pkg/retry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	testCases := []struct {
		desc     string
		err      error
		expected bool
	}{
		{desc: "serialization failure", err: &pgconn.PgError{Code: "40001"}, expected: true},
		{desc: "deadlock", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), expected: true},
		{desc: "unique violation", err: &pgconn.PgError{Code: "23505"}, expected: false},
		{desc: "domain error", err: entity.ErrStatusConflict, expected: false},
		{desc: "deadline", err: context.DeadlineExceeded, expected: false},
		{desc: "closed tx", err: stepError("UpdateStatus", "commit", pgx.ErrTxClosed), expected: true},
		{desc: "connection failure", err: &pgconn.PgError{Code: "08006"}, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, isTransient(tc.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	newManager := func(t *testing.T) *manager {
		t.Helper()
		tm, err := NewManager(nil, logger.NewNop(), metric.NewFactory().Transaction(), WithRetryPolicy(retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
		}))
		require.NoError(t, err)
		return tm.(*manager)
	}

	t.Run("retries transient errors", func(t *testing.T) {
		tm := newManager(t)
		calls := 0
		err := tm.withRetry(context.Background(), "UpdateStatus", func(context.Context) error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		tm := newManager(t)
		calls := 0
		err := tm.withRetry(context.Background(), "UpdateStatus", func(context.Context) error {
			calls++
			return &pgconn.PgError{Code: "40P01"}
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns domain errors untouched", func(t *testing.T) {
		tm := newManager(t)
		calls := 0
		err := tm.withRetry(context.Background(), "UpdateStatus", func(context.Context) error {
			calls++
			return stepError("UpdateStatus", "execute", entity.ErrDataNotFound)
		})
		require.ErrorIs(t, err, entity.ErrDataNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		tm := newManager(t)
		ctx, cancel := context.WithCancel(context.Background())
		err := tm.withRetry(ctx, "UpdateStatus", func(context.Context) error {
			cancel()
			return &pgconn.PgError{Code: "40001"}
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, logger.NewNop(), metric.NewFactory().Transaction(),
		WithRetryPolicy(retry.Policy{MaxAttempts: 0, BaseDelay: 200 * time.Millisecond, MaxDelay: 100 * time.Millisecond}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid max attempts 0")
	assert.Contains(t, err.Error(), "base delay cannot exceed max delay")

	_, err = NewManager(nil, logger.NewNop(), metric.NewFactory().Transaction(), WithIsolation(pgx.ReadUncommitted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported isolation level")
}
