package transaction

import (
	"errors"
	"fmt"

	"github.com/ups-tracking/ups-api/pkg/retry"

	"github.com/jackc/pgx/v5"
)

type Option func(*manager)

// WithRetryPolicy bounds how often a transaction hit by a serialization
// failure, deadlock or dropped connection is replayed.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(m *manager) {
		m.policy = policy
	}
}

func WithIsolation(level pgx.TxIsoLevel) Option {
	return func(m *manager) {
		m.isolation = level
	}
}

func (m *manager) validate() error {
	var errs []error
	if err := m.policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry policy: %w", err))
	}
	switch m.isolation {
	case pgx.ReadCommitted, pgx.RepeatableRead, pgx.Serializable:
	default:
		errs = append(errs, fmt.Errorf("unsupported isolation level %q", m.isolation))
	}
	if m.log == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	return errors.Join(errs...)
}
