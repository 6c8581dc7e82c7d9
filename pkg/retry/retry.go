// Package retry runs operations under a bounded, jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	_multiplier          = 2
	_randomizationFactor = 0.5
)

// Policy bounds a retry loop. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p Policy) Validate() error {
	var errs []error
	if p.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("invalid max attempts %d: must be > 0", p.MaxAttempts))
	}
	if p.BaseDelay <= 0 {
		errs = append(errs, errors.New("invalid base delay: must be > 0"))
	}
	if p.MaxDelay <= 0 {
		errs = append(errs, errors.New("invalid max delay: must be > 0"))
	}
	if p.BaseDelay > p.MaxDelay {
		errs = append(errs, errors.New("base delay cannot exceed max delay"))
	}
	return errors.Join(errs...)
}

type config struct {
	retryable func(error) bool
	notify    func(attempt int, delay time.Duration, err error)
}

type Option func(*config)

// If limits retries to errors for which retryable returns true. Other errors
// are returned after the attempt that produced them.
func If(retryable func(error) bool) Option {
	return func(c *config) {
		c.retryable = retryable
	}
}

// Notify is called before each wait with the number of the upcoming attempt.
func Notify(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(c *config) {
		c.notify = fn
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, the policy
// runs out of attempts or ctx is done. It reports how many calls were made.
// When ctx ends the loop, the context error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, opts ...Option) (int, error) {
	cfg := config{
		retryable: func(error) bool { return true },
		notify:    func(int, time.Duration, error) {},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.MaxInterval = p.MaxDelay
	eb.Multiplier = _multiplier
	eb.RandomizationFactor = _randomizationFactor
	eb.MaxElapsedTime = 0

	var maxRetries uint64
	if p.MaxAttempts > 1 {
		maxRetries = uint64(p.MaxAttempts - 1)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries), ctx)

	attempts := 0
	operation := func() error {
		attempts++
		err := fn(ctx)
		if err != nil && !cfg.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(operation, b, func(err error, delay time.Duration) {
		cfg.notify(attempts+1, delay, err)
	})
	return attempts, err
}
