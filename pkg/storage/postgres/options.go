package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/ups-tracking/ups-api/pkg/retry"
)

type Option func(*Postgres)

func MaxPoolSize(size int32) Option {
	return func(p *Postgres) {
		p.maxPoolSize = size
	}
}

func MinPoolSize(size int32) Option {
	return func(p *Postgres) {
		p.minPoolSize = size
	}
}

func MaxConnIdleTime(d time.Duration) Option {
	return func(p *Postgres) {
		p.maxConnIdleTime = d
	}
}

// ConnectRetry sets how often and how patiently the initial ping is retried.
func ConnectRetry(policy retry.Policy) Option {
	return func(p *Postgres) {
		p.connectRetry = policy
	}
}

func (p *Postgres) validate() error {
	var errs []error
	if p.maxPoolSize <= 0 {
		errs = append(errs, fmt.Errorf("invalid max pool size %d: must be > 0", p.maxPoolSize))
	}
	if p.minPoolSize < 0 || p.minPoolSize > p.maxPoolSize {
		errs = append(errs, fmt.Errorf("invalid min pool size %d: must be within [0, %d]", p.minPoolSize, p.maxPoolSize))
	}
	if p.maxConnIdleTime < 0 {
		errs = append(errs, errors.New("invalid max conn idle time: must not be negative"))
	}
	if err := p.connectRetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("connect retry: %w", err))
	}
	return errors.Join(errs...)
}
