package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Option func(*ShipmentService)

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *ShipmentService) {
		s.cacheTTL = ttl
	}
}

func WithImageFolder(folder string) Option {
	return func(s *ShipmentService) {
		s.imageFolder = strings.Trim(folder, "/")
	}
}

func WithCreateRetries(retries int) Option {
	return func(s *ShipmentService) {
		s.createRetries = retries
	}
}

func WithStoreTimeout(timeout time.Duration) Option {
	return func(s *ShipmentService) {
		s.contextTimeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ShipmentService) {
		s.now = now
	}
}

func (s *ShipmentService) validate() error {
	var errs []error

	if s.store == nil {
		errs = append(errs, errors.New("store is required"))
	}
	if s.generator == nil {
		errs = append(errs, errors.New("generator is required"))
	}
	if s.uploader == nil {
		errs = append(errs, errors.New("uploader is required"))
	}
	if s.validator == nil {
		errs = append(errs, errors.New("status validator is required"))
	}
	if s.cache == nil {
		errs = append(errs, errors.New("cache is required"))
	}
	if s.logger == nil {
		errs = append(errs, errors.New("logger is required"))
	}
	if s.metrics == nil {
		errs = append(errs, errors.New("metrics is required"))
	}
	if s.cacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache TTL must be positive, got %s", s.cacheTTL))
	}
	if s.createRetries < 1 {
		errs = append(errs, fmt.Errorf("create retries must be at least 1, got %d", s.createRetries))
	}
	if s.contextTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be positive, got %s", s.contextTimeout))
	}
	if s.now == nil {
		errs = append(errs, errors.New("clock is required"))
	}

	return errors.Join(errs...)
}
