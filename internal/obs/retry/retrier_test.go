package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("broker unavailable")
		}
		return nil
	}, Policy{Name: "test_ok", Attempts: 5, Backoff: Constant(time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausts(t *testing.T) {
	var exhausted error
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), func() error {
		calls++
		return boom
	}, Policy{
		Name:      "test_exhaust",
		Attempts:  3,
		Backoff:   Constant(time.Millisecond),
		OnExhaust: func(err error) { exhausted = err },
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, exhausted, boom)
}

func TestDo_NonRetryableStopsEarly(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return context.Canceled
	}, Policy{Name: "test_canceled", Attempts: 5})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("refused")
	}, Policy{Name: "test_ctx", Attempts: 5, Backoff: Constant(time.Hour)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExpoJitter_Capped(t *testing.T) {
	b := ExpoJitter{Base: time.Second, Max: 4 * time.Second}
	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, 2*time.Second, b.Next(1))
	assert.Equal(t, 4*time.Second, b.Next(5))
}
