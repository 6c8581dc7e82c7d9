package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ups-tracking/ups-api/pkg/retry"
)

var fastPolicy = retry.Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestDo(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")

	testCases := []struct {
		desc         string
		results      []error
		wantAttempts int
		wantErr      error
	}{
		{desc: "FirstAttempt", results: []error{nil}, wantAttempts: 1},
		{desc: "RecoversAfterRetries", results: []error{errTransient, errTransient, nil}, wantAttempts: 3},
		{
			desc:         "Exhausted",
			results:      []error{errTransient, errTransient, errTransient, errTransient, nil},
			wantAttempts: 4,
			wantErr:      errTransient,
		},
		{desc: "NotRetryable", results: []error{errFatal, nil}, wantAttempts: 1, wantErr: errFatal},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			calls := 0
			var notified []int

			attempts, err := retry.Do(context.Background(), fastPolicy,
				func(context.Context) error {
					res := tc.results[calls]
					calls++
					return res
				},
				retry.If(func(err error) bool { return !errors.Is(err, errFatal) }),
				retry.Notify(func(attempt int, _ time.Duration, _ error) {
					notified = append(notified, attempt)
				}),
			)

			assert.Equal(t, tc.wantAttempts, attempts)
			assert.Equal(t, tc.wantAttempts, calls)
			assert.Len(t, notified, tc.wantAttempts-1)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts, err := retry.Do(ctx, retry.Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second},
		func(context.Context) error {
			cancel()
			return errors.New("fail")
		})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, fastPolicy.Validate())

	err := retry.Policy{MaxAttempts: 0, BaseDelay: time.Second, MaxDelay: time.Millisecond}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid max attempts 0")
	assert.Contains(t, err.Error(), "base delay cannot exceed max delay")
}

