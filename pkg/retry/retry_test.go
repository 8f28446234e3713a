package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleeper records delays without actually sleeping.
type fakeSleeper struct {
	delays []time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.delays = append(f.delays, d)
	return nil
}

func testConfig(s Sleeper) Config {
	cfg := DefaultConfig()
	cfg.Sleeper = s
	return cfg
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	t.Parallel()
	s := &fakeSleeper{}
	err := Do(context.Background(), testConfig(s), func(int) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, s.delays)
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := &fakeSleeper{}

	err := Do(context.Background(), testConfig(s), func(int) error {
		if calls.Add(1) < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, s.delays)
}

func TestDo_AllFail(t *testing.T) {
	t.Parallel()
	s := &fakeSleeper{}
	sentinel := errors.New("always fail")

	err := Do(context.Background(), testConfig(s), func(int) error { return sentinel })

	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Len(t, s.delays, 2, "no sleep after last attempt")
}

func TestDo_StopError(t *testing.T) {
	t.Parallel()
	s := &fakeSleeper{}
	permanent := errors.New("404")
	var calls int

	err := Do(context.Background(), testConfig(s), func(int) error {
		calls++
		return Stop(permanent)
	})

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.delays)
}

func TestDo_ContextCancelledBeforeStart(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	err := Do(ctx, testConfig(&fakeSleeper{}), func(int) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())

	err := Do(ctx, testConfig(&fakeSleeper{}), func(int) error {
		cancel()
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_ZeroAttemptsIsNoop(t *testing.T) {
	t.Parallel()
	err := Do(context.Background(), Config{}, func(int) error {
		t.Fatal("fn must not be called")
		return nil
	})
	assert.NoError(t, err)
}

func TestDo_OnRetryAndAttemptNumbers(t *testing.T) {
	t.Parallel()
	var attempts []int
	var reported []int
	cfg := testConfig(&fakeSleeper{})
	cfg.OnRetry = func(attempt int, _ time.Duration, _ error) {
		reported = append(reported, attempt)
	}

	_ = Do(context.Background(), cfg, func(attempt int) error {
		attempts = append(attempts, attempt)
		return errors.New("fail")
	})

	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []int{1, 2}, reported)
}

func TestCalcDelay(t *testing.T) {
	t.Parallel()
	cfg := Config{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalcDelay(cfg, tt.attempt), "attempt %d", tt.attempt)
	}

	unbounded := Config{BaseDelay: time.Second}
	assert.Equal(t, 8*time.Second, CalcDelay(unbounded, 4))
}

func TestTimerSleeper(t *testing.T) {
	t.Parallel()
	require.NoError(t, TimerSleeper{}.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, TimerSleeper{}.Sleep(ctx, time.Hour), context.Canceled)
}
