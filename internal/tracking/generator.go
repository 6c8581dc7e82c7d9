// Package tracking mints human-shareable tracking numbers of the form UPS-######.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/ups-tracking/ups-api/internal/entity"
)

const (
	DefaultPrefix      = "UPS-"
	DefaultMaxAttempts = 20

	_minCode = 100000
	_maxCode = 999999
)

// ExistsFunc reports whether a shipment already uses code.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

//go:generate mockgen -source=generator.go -destination=mock/generator.go -package=mock_tracking

type Generator interface {
	Generate(ctx context.Context, exists ExistsFunc) (string, error)
}

type generator struct {
	prefix      string
	maxAttempts int
	intN        func(n int) int
	onCollision func()
	onGenerated func(attempts int)
}

func NewGenerator(opts ...Option) (Generator, error) {
	g := &generator{
		prefix:      DefaultPrefix,
		maxAttempts: DefaultMaxAttempts,
		intN:        rand.IntN,
		onCollision: func() {},
		onGenerated: func(int) {},
	}

	for _, opt := range opts {
		opt(g)
	}
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("tracking.NewGenerator: %w", err)
	}

	return g, nil
}

// Generate draws candidates until exists reports one as free. The check is
// only a fast path: the store's unique constraint remains authoritative.
func (g *generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	const op = "tracking.Generate"

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		code := g.candidate()

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%s: check %s: %w", op, code, err)
		}
		if !taken {
			g.onGenerated(attempt)
			return code, nil
		}

		g.onCollision()
	}

	return "", fmt.Errorf("%s: %d attempts: %w", op, g.maxAttempts, entity.ErrGenerationExhausted)
}

func (g *generator) candidate() string {
	return fmt.Sprintf("%s%06d", g.prefix, _minCode+g.intN(_maxCode-_minCode+1))
}

type Option func(*generator)

func WithPrefix(prefix string) Option {
	return func(g *generator) {
		g.prefix = prefix
	}
}

func WithMaxAttempts(attempts int) Option {
	return func(g *generator) {
		g.maxAttempts = attempts
	}
}

// WithIntN replaces the random source; intN must return a value in [0, n).
func WithIntN(intN func(n int) int) Option {
	return func(g *generator) {
		g.intN = intN
	}
}

// WithObserver hooks generation outcomes, typically into metrics.
func WithObserver(onGenerated func(attempts int), onCollision func()) Option {
	return func(g *generator) {
		if onGenerated != nil {
			g.onGenerated = onGenerated
		}
		if onCollision != nil {
			g.onCollision = onCollision
		}
	}
}

func (g *generator) validate() error {
	if g.prefix == "" {
		return errors.New("invalid prefix: must not be empty")
	}
	if g.maxAttempts <= 0 {
		return errors.New("invalid maxAttempts: must be > 0")
	}
	if g.intN == nil {
		return errors.New("invalid random source: must not be nil")
	}
	return nil
}
