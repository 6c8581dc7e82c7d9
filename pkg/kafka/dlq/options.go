package dlq

import (
	"errors"
	"fmt"
	"time"
)

type Option func(*DLQ)

// WithMaxAttempts sets how many times a message is handled before it is
// dead-lettered, the first attempt included.
func WithMaxAttempts(count int) Option {
	return func(d *DLQ) {
		d.policy.MaxAttempts = count
	}
}

// WithRetryDelay bounds the jittered exponential backoff between attempts.
func WithRetryDelay(base, limit time.Duration) Option {
	return func(d *DLQ) {
		d.policy.BaseDelay = base
		d.policy.MaxDelay = limit
	}
}

func (d *DLQ) validate() error {
	var errs []error

	if d.writer == nil {
		errs = append(errs, errors.New("writer is required"))
	}
	if d.topic == "" {
		errs = append(errs, errors.New("topic is required"))
	}
	if d.log == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	if d.metrics == nil {
		errs = append(errs, errors.New("metrics is required"))
	}
	if err := d.policy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry policy: %w", err))
	}

	return errors.Join(errs...)
}
