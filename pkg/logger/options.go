package logger

import (
	"errors"
	"fmt"
)

const (
	_defaultMaxSize    = 100
	_defaultMaxBackups = 7
	_defaultMaxAge     = 30
)

type settings struct {
	level      Level
	filename   string
	maxSize    int
	maxBackups int
	maxAge     int
}

type Option func(*settings)

// MaxSize is the size in megabytes at which the log file rotates.
func MaxSize(megabytes int) Option {
	return func(s *settings) {
		s.maxSize = megabytes
	}
}

func MaxBackups(count int) Option {
	return func(s *settings) {
		s.maxBackups = count
	}
}

// MaxAge is how many days rotated files are kept.
func MaxAge(days int) Option {
	return func(s *settings) {
		s.maxAge = days
	}
}

func WithLevel(level Level) Option {
	return func(s *settings) {
		s.level = level
	}
}

// WithoutFile disables the rotating file sink; logs go to stdout only.
func WithoutFile() Option {
	return func(s *settings) {
		s.filename = ""
	}
}

func (s settings) validate() error {
	var errs []error
	if s.level < DebugLevel || s.level > ErrorLevel {
		errs = append(errs, fmt.Errorf("invalid level %d", s.level))
	}
	if s.filename != "" {
		if s.maxSize <= 0 {
			errs = append(errs, errors.New("invalid max size: must be > 0"))
		}
		if s.maxBackups < 0 {
			errs = append(errs, errors.New("invalid max backups: must be >= 0"))
		}
		if s.maxAge <= 0 {
			errs = append(errs, errors.New("invalid max age: must be > 0"))
		}
	}
	return errors.Join(errs...)
}
