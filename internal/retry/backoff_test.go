package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoFirstAttemptSucceeds(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), ReadPolicy(), countingSleep(&delays), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDoRecoversWithExponentialDelays(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), ReadPolicy(), countingSleep(&delays), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestDoExhaustsAndReturnsLastError(t *testing.T) {
	var delays []time.Duration
	calls := 0
	boom := errors.New("backend down")

	err := Do(context.Background(), ReadPolicy(), countingSleep(&delays), func() error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	// No sleep after the final attempt.
	assert.Len(t, delays, 2)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, ReadPolicy(), func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}, func() error {
		calls++
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoZeroPolicyRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, nil, func() error {
		calls++
		return errors.New("nope")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
