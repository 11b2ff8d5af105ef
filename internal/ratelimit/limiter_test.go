package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	l := New(cfg)
	l.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return l
}

func acquireRelease(t *testing.T, l *Limiter, success bool, status int) {
	t.Helper()
	require.NoError(t, l.Acquire(context.Background()))
	l.Release(success, status)
}

func TestBackoffMonotonicUnder429(t *testing.T) {
	l := newTestLimiter(t, Config{MaxBackoff: 60 * time.Second})

	var prev time.Duration
	for i := 0; i < 10; i++ {
		acquireRelease(t, l, false, 429)
		cur := l.Stats().CurrentBackoff
		assert.GreaterOrEqual(t, cur, prev, "backoff must never shrink under consecutive 429s")
		assert.LessOrEqual(t, cur, 60*time.Second, "backoff must stay bounded by MaxBackoff")
		prev = cur
	}
	// Enough doublings from the 5s floor to hit the ceiling.
	assert.Equal(t, 60*time.Second, l.Stats().CurrentBackoff)
}

func TestBackoffFloorOn429(t *testing.T) {
	l := newTestLimiter(t, Config{})
	acquireRelease(t, l, false, 429)
	assert.GreaterOrEqual(t, l.Stats().CurrentBackoff, 5*time.Second)
}

func TestBackoffFloorOnServerError(t *testing.T) {
	l := newTestLimiter(t, Config{})
	acquireRelease(t, l, false, 503)
	assert.GreaterOrEqual(t, l.Stats().CurrentBackoff, 2*time.Second)
	assert.Less(t, l.Stats().CurrentBackoff, 5*time.Second)
}

func TestBackoffDecaysOnSuccess(t *testing.T) {
	l := newTestLimiter(t, Config{})
	acquireRelease(t, l, false, 429)
	acquireRelease(t, l, false, 429)
	grown := l.Stats().CurrentBackoff
	require.Greater(t, grown, time.Duration(0))

	acquireRelease(t, l, true, 200)
	decayed := l.Stats().CurrentBackoff
	assert.Less(t, decayed, grown, "success must strictly decrease backoff")
	assert.Zero(t, l.Stats().ConsecutiveErrors)
}

func TestBackoffStaysZeroOnSuccess(t *testing.T) {
	l := newTestLimiter(t, Config{})
	acquireRelease(t, l, true, 200)
	assert.Zero(t, l.Stats().CurrentBackoff)
}

func TestNonRetryStatusDoesNotGrowBackoff(t *testing.T) {
	l := newTestLimiter(t, Config{})
	acquireRelease(t, l, false, 404)
	assert.Zero(t, l.Stats().CurrentBackoff)
	assert.Equal(t, 1, l.Stats().ConsecutiveErrors)
}

func TestAcquireCancelled(t *testing.T) {
	l := newTestLimiter(t, Config{MaxConcurrent: 1})

	// Hold the only permit so the second Acquire blocks on the semaphore.
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	l.Release(true, 200)
}

func TestStatsSnapshot(t *testing.T) {
	l := newTestLimiter(t, Config{})
	acquireRelease(t, l, true, 200)
	acquireRelease(t, l, true, 200)
	acquireRelease(t, l, false, 500)

	s := l.Stats()
	assert.Equal(t, int64(3), s.TotalRequests)
	assert.Equal(t, int64(2), s.SuccessfulRequests)
	assert.InDelta(t, 2.0/3.0, s.SuccessRate, 1e-9)
	assert.Equal(t, 1, s.ConsecutiveErrors)
	assert.Equal(t, 3, s.RecentRequests)
}

func TestDefaultsApplied(t *testing.T) {
	l := New(Config{})
	assert.Equal(t, DefaultConfig().MaxConcurrent, l.cfg.MaxConcurrent)
	assert.Equal(t, DefaultConfig().BackoffFactor, l.cfg.BackoffFactor)
	assert.Equal(t, DefaultConfig().MaxBackoff, l.cfg.MaxBackoff)
}
