package mongo

import (
	"errors"
	"fmt"
	"time"

	"github.com/ups-tracking/ups-api/pkg/retry"
)

type Option func(*Mongo)

func MaxPoolSize(size uint64) Option {
	return func(m *Mongo) {
		m.maxPoolSize = size
	}
}

func ConnectTimeout(timeout time.Duration) Option {
	return func(m *Mongo) {
		m.connectTimeout = timeout
	}
}

func ConnectRetry(policy retry.Policy) Option {
	return func(m *Mongo) {
		m.connectRetry = policy
	}
}

func (m *Mongo) validate() error {
	var errs []error
	if m.maxPoolSize == 0 {
		errs = append(errs, errors.New("invalid max pool size: must be > 0"))
	}
	if m.connectTimeout <= 0 {
		errs = append(errs, errors.New("invalid connect timeout: must be > 0"))
	}
	if err := m.connectRetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("connect retry: %w", err))
	}
	return errors.Join(errs...)
}
