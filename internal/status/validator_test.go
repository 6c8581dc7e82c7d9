package status_test

import (
	"testing"

	"github.com/ups-tracking/ups-api/internal/entity"
	"github.com/ups-tracking/ups-api/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissive_Validate(t *testing.T) {
	v := status.Permissive()

	for _, current := range entity.Statuses {
		for _, requested := range entity.Statuses {
			assert.NoError(t, v.Validate(current, requested), "%s -> %s", current, requested)
		}
	}

	testCases := []struct {
		desc      string
		requested entity.Status
	}{
		{desc: "unknown", requested: "lost"},
		{desc: "empty", requested: ""},
		{desc: "wrong case", requested: "Delivered"},
		{desc: "underscore", requested: "in_transit"},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			require.ErrorIs(t, v.Validate(entity.StatusPending, tc.requested), entity.ErrInvalidStatus)
		})
	}
}

func TestStrict_Validate(t *testing.T) {
	v := status.Strict()

	testCases := []struct {
		desc        string
		current     entity.Status
		requested   entity.Status
		expectedErr error
	}{
		{desc: "pending to in transit", current: entity.StatusPending, requested: entity.StatusInTransit},
		{desc: "in transit to delivered", current: entity.StatusInTransit, requested: entity.StatusDelivered},
		{desc: "pending to cancelled", current: entity.StatusPending, requested: entity.StatusCancelled},
		{desc: "in transit to cancelled", current: entity.StatusInTransit, requested: entity.StatusCancelled},
		{desc: "same state", current: entity.StatusInTransit, requested: entity.StatusInTransit},
		{
			desc:        "pending to delivered skips transit",
			current:     entity.StatusPending,
			requested:   entity.StatusDelivered,
			expectedErr: entity.ErrIllegalTransition,
		},
		{
			desc:        "delivered is terminal",
			current:     entity.StatusDelivered,
			requested:   entity.StatusPending,
			expectedErr: entity.ErrIllegalTransition,
		},
		{
			desc:        "cancelled is terminal",
			current:     entity.StatusCancelled,
			requested:   entity.StatusInTransit,
			expectedErr: entity.ErrIllegalTransition,
		},
		{
			desc:        "unknown status",
			current:     entity.StatusPending,
			requested:   "lost",
			expectedErr: entity.ErrInvalidStatus,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := v.Validate(tc.current, tc.requested)
			if tc.expectedErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.expectedErr)
			assert.ErrorIs(t, err, entity.ErrInvalidStatus)
		})
	}
}

func TestNew(t *testing.T) {
	v, err := status.New("permissive")
	require.NoError(t, err)
	assert.NoError(t, v.Validate(entity.StatusDelivered, entity.StatusPending))

	v, err = status.New("strict")
	require.NoError(t, err)
	assert.Error(t, v.Validate(entity.StatusDelivered, entity.StatusPending))

	_, err = status.New("lenient")
	require.Error(t, err)
}
