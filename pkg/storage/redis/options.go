package redis

import (
	"errors"
	"fmt"
	"time"

	"github.com/ups-tracking/ups-api/pkg/retry"
)

type Option func(*Redis)

func Password(password string) Option {
	return func(r *Redis) {
		r.password = password
	}
}

func DB(db int) Option {
	return func(r *Redis) {
		r.db = db
	}
}

func PoolSize(size int) Option {
	return func(r *Redis) {
		r.poolSize = size
	}
}

func DialTimeout(timeout time.Duration) Option {
	return func(r *Redis) {
		r.dialTimeout = timeout
	}
}

func ConnectRetry(policy retry.Policy) Option {
	return func(r *Redis) {
		r.connectRetry = policy
	}
}

func (r *Redis) validate() error {
	var errs []error
	if r.db < 0 {
		errs = append(errs, fmt.Errorf("invalid db %d: must be >= 0", r.db))
	}
	if r.poolSize <= 0 {
		errs = append(errs, errors.New("invalid pool size: must be > 0"))
	}
	if r.dialTimeout <= 0 {
		errs = append(errs, errors.New("invalid dial timeout: must be > 0"))
	}
	if err := r.connectRetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("connect retry: %w", err))
	}
	return errors.Join(errs...)
}
