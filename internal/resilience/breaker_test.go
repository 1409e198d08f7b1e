package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerTransitions(t *testing.T) {
	clock := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	breaker := NewBreaker(BreakerConfig{Target: "settings_cache", MinRequests: 2, FailureRatio: 0.5, OpenFor: time.Minute})
	breaker.now = func() time.Time { return clock }
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, Open, breaker.State())
	require.False(t, breaker.Allow(ctx))

	clock = clock.Add(time.Minute)
	require.True(t, breaker.Allow(ctx))
	require.Equal(t, HalfOpen, breaker.State())
	breaker.Report(ctx, true)
	require.Equal(t, Closed, breaker.State())
}

func TestBreakerHalfOpenAdmitsSingleTrialCall(t *testing.T) {
	clock := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	breaker := NewBreaker(BreakerConfig{MinRequests: 1, OpenFor: time.Second})
	breaker.now = func() time.Time { return clock }
	ctx := context.Background()

	breaker.Report(ctx, false)
	clock = clock.Add(time.Second)
	require.True(t, breaker.Allow(ctx))
	require.False(t, breaker.Allow(ctx))
	require.False(t, breaker.Allow(ctx))

	breaker.Report(ctx, true)
	require.Equal(t, Closed, breaker.State())
	require.True(t, breaker.Allow(ctx))
}

func TestBreakerCancelledTrialFreesSlot(t *testing.T) {
	clock := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	breaker := NewBreaker(BreakerConfig{MinRequests: 1, OpenFor: time.Second})
	breaker.now = func() time.Time { return clock }

	breaker.Report(context.Background(), false)
	clock = clock.Add(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := breaker.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, HalfOpen, breaker.State())
	require.True(t, breaker.Allow(context.Background()))
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	breaker := NewBreaker(BreakerConfig{MinRequests: 1, OpenFor: time.Second})
	breaker.now = func() time.Time { return clock }
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.Equal(t, Open, breaker.State())
	clock = clock.Add(time.Second)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, Open, breaker.State())
}

func TestBreakerDo(t *testing.T) {
	breaker := NewBreaker(BreakerConfig{MinRequests: 1, OpenFor: time.Hour})
	boom := errors.New("redis down")

	err := breaker.Do(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)

	calls := 0
	err = breaker.Do(context.Background(), func(context.Context) error { calls++; return nil })
	require.ErrorIs(t, err, ErrOpenCircuit)
	require.Zero(t, calls)

	var nilBreaker *Breaker
	require.NoError(t, nilBreaker.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	breaker := NewBreaker(BreakerConfig{MinRequests: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := breaker.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, Closed, breaker.State())
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, Backoff(base, 1, 0))
	require.Equal(t, base*4, Backoff(base, 3, 0))

	d := Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-base*2/5)
	require.LessOrEqual(t, d, base*2+base*2/5)
}
