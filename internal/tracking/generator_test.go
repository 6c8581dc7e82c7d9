package tracking_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^UPS-\d{6}$`)

// sequence returns a random source that yields values in order and then repeats the last one.
func sequence(values ...int) func(int) int {
	var mu sync.Mutex
	i := 0
	return func(int) int {
		mu.Lock()
		defer mu.Unlock()
		v := values[min(i, len(values)-1)]
		i++
		return v
	}
}

func TestGenerator_Generate(t *testing.T) {
	errStore := errors.New("store unreachable")

	testCases := []struct {
		desc        string
		intN        func(int) int
		maxAttempts int
		taken       map[string]bool
		existsErr   error
		expected    string
		expectedErr error
		checks      int
	}{
		{
			desc:        "first candidate free",
			intN:        sequence(23456),
			maxAttempts: 20,
			expected:    "UPS-123456",
			checks:      1,
		},
		{
			desc:        "lower bound",
			intN:        sequence(0),
			maxAttempts: 20,
			expected:    "UPS-100000",
			checks:      1,
		},
		{
			desc:        "upper bound",
			intN:        sequence(899999),
			maxAttempts: 20,
			expected:    "UPS-999999",
			checks:      1,
		},
		{
			desc:        "redraws on collision",
			intN:        sequence(1, 1, 2),
			maxAttempts: 20,
			taken:       map[string]bool{"UPS-100001": true},
			expected:    "UPS-100002",
			checks:      3,
		},
		{
			desc:        "exhausted",
			intN:        sequence(7),
			maxAttempts: 5,
			taken:       map[string]bool{"UPS-100007": true},
			expectedErr: entity.ErrGenerationExhausted,
			checks:      5,
		},
		{
			desc:        "store error aborts",
			intN:        sequence(7),
			maxAttempts: 5,
			existsErr:   errStore,
			expectedErr: errStore,
			checks:      1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			g, err := tracking.NewGenerator(
				tracking.WithIntN(tc.intN),
				tracking.WithMaxAttempts(tc.maxAttempts),
			)
			require.NoError(t, err)

			checks := 0
			code, err := g.Generate(context.Background(), func(_ context.Context, code string) (bool, error) {
				checks++
				if tc.existsErr != nil {
					return false, tc.existsErr
				}
				return tc.taken[code], nil
			})

			assert.Equal(t, tc.checks, checks)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				assert.Empty(t, code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, code)
		})
	}
}

func TestGenerator_Format(t *testing.T) {
	g, err := tracking.NewGenerator()
	require.NoError(t, err)

	free := func(context.Context, string) (bool, error) { return false, nil }
	for range 1000 {
		code, err := g.Generate(context.Background(), free)
		require.NoError(t, err)
		require.Regexp(t, codePattern, code)
	}
}

func TestGenerator_Observer(t *testing.T) {
	var generated, collisions int
	g, err := tracking.NewGenerator(
		tracking.WithIntN(sequence(1, 2)),
		tracking.WithObserver(
			func(attempts int) { generated = attempts },
			func() { collisions++ },
		),
	)
	require.NoError(t, err)

	code, err := g.Generate(context.Background(), func(_ context.Context, code string) (bool, error) {
		return code == "UPS-100001", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "UPS-100002", code)
	assert.Equal(t, 2, generated)
	assert.Equal(t, 1, collisions)
}

func TestGenerator_CancelledContext(t *testing.T) {
	g, err := tracking.NewGenerator()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = g.Generate(ctx, func(context.Context, string) (bool, error) { return false, nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewGenerator_Validation(t *testing.T) {
	testCases := []struct {
		desc string
		opts []tracking.Option
	}{
		{desc: "empty prefix", opts: []tracking.Option{tracking.WithPrefix("")}},
		{desc: "zero attempts", opts: []tracking.Option{tracking.WithMaxAttempts(0)}},
		{desc: "nil source", opts: []tracking.Option{tracking.WithIntN(nil)}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := tracking.NewGenerator(tc.opts...)
			require.Error(t, err)
		})
	}
}
