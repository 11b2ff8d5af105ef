// Package ratelimit implements the adaptive rate limiter shared by all
// harvest workers. It combines a bounded concurrency budget with randomized
// inter-request delays and exponential backoff driven by response status.
package ratelimit

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Config holds rate limiting parameters.
type Config struct {
	// MinDelay and MaxDelay bound the randomized delay applied before
	// every request.
	MinDelay time.Duration
	MaxDelay time.Duration

	// MaxConcurrent is the number of simultaneous in-flight requests.
	MaxConcurrent int

	// BackoffFactor is the multiplicative backoff growth on a 429 response.
	BackoffFactor float64

	// MaxBackoff caps the accumulated backoff.
	MaxBackoff time.Duration

	// RetryLimit is the per-request retry budget used by callers.
	RetryLimit int

	// RequestTimeout is the per-request HTTP timeout used by callers.
	RequestTimeout time.Duration
}

// DefaultConfig returns the default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		MinDelay:       1 * time.Second,
		MaxDelay:       3 * time.Second,
		MaxConcurrent:  3,
		BackoffFactor:  2.0,
		MaxBackoff:     60 * time.Second,
		RetryLimit:     3,
		RequestTimeout: 30 * time.Second,
	}
}

// Stats is a snapshot of cumulative limiter state for observability.
type Stats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	SuccessRate        float64
	ConsecutiveErrors  int
	CurrentBackoff     time.Duration
	RecentRequests     int
	AvgRequestInterval time.Duration
}

// Limiter is an adaptive rate limiter. It never fails an operation itself:
// backoff growth is the only reaction to persistent errors, and callers
// decide when to give up. Safe for concurrent use by all workers of a
// harvester.
type Limiter struct {
	cfg Config
	sem *semaphore.Weighted

	// sleep is swapped out in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error

	mu                 sync.Mutex
	recentRequests     []time.Time
	consecutiveErrors  int
	currentBackoff     time.Duration
	totalRequests      int64
	successfulRequests int64
}

// windowSize is the sliding window used to detect request-rate spikes.
const windowSize = 60 * time.Second

// New creates a Limiter from cfg, applying defaults for zero fields.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Limiter{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		sleep: func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				return nil
			}
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// Acquire blocks until a request permit is available, then applies the
// randomized delay plus any accumulated backoff. Returns an error only when
// ctx is cancelled; a returned error means no permit is held.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	delay := l.calculateDelay()
	if delay > 0 {
		slog.Debug("rate limiting", "wait", delay)
		if err := l.sleep(ctx, delay); err != nil {
			l.sem.Release(1)
			return err
		}
	}

	l.mu.Lock()
	now := time.Now()
	l.recentRequests = append(l.recentRequests, now)
	l.pruneWindowLocked(now)
	l.totalRequests++
	l.mu.Unlock()
	return nil
}

// Release returns the permit and updates backoff state based on the outcome.
// A 429 grows backoff by BackoffFactor with a 5s floor; a 5xx grows it by
// 1.5x with a 2s floor; success decays backoff multiplicatively.
func (l *Limiter) Release(success bool, statusCode int) {
	l.sem.Release(1)

	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		l.successfulRequests++
		l.consecutiveErrors = 0
		l.currentBackoff = time.Duration(float64(l.currentBackoff) * 0.8)
		return
	}

	l.consecutiveErrors++
	switch {
	case statusCode == 429:
		grown := time.Duration(float64(l.currentBackoff) * l.cfg.BackoffFactor)
		l.currentBackoff = clampBackoff(grown, 5*time.Second, l.cfg.MaxBackoff)
		slog.Warn("rate limited (429)", "backoff", l.currentBackoff)
	case statusCode >= 500 && statusCode < 600:
		grown := time.Duration(float64(l.currentBackoff) * 1.5)
		l.currentBackoff = clampBackoff(grown, 2*time.Second, l.cfg.MaxBackoff)
		slog.Warn("server error", "status", statusCode, "backoff", l.currentBackoff)
	}
}

// Stats returns a snapshot of limiter counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		TotalRequests:      l.totalRequests,
		SuccessfulRequests: l.successfulRequests,
		ConsecutiveErrors:  l.consecutiveErrors,
		CurrentBackoff:     l.currentBackoff,
		RecentRequests:     len(l.recentRequests),
		AvgRequestInterval: l.recentIntervalLocked(),
	}
	if l.totalRequests > 0 {
		s.SuccessRate = float64(l.successfulRequests) / float64(l.totalRequests)
	}
	return s
}

// calculateDelay computes the pre-request delay: a randomized base within
// [MinDelay, MaxDelay], plus the accumulated backoff, plus a flat extra
// second when the recent window shows more than one request per second.
func (l *Limiter) calculateDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	base := l.cfg.MinDelay
	if span := l.cfg.MaxDelay - l.cfg.MinDelay; span > 0 {
		base += time.Duration(rand.Int63n(int64(span)))
	}
	total := base + l.currentBackoff

	if len(l.recentRequests) >= l.cfg.MaxConcurrent {
		if interval := l.recentIntervalLocked(); interval > 0 && interval < time.Second {
			total += time.Second
		}
	}
	return total
}

// recentIntervalLocked returns the average time between requests in the
// window, or 0 when fewer than two requests have been seen.
func (l *Limiter) recentIntervalLocked() time.Duration {
	n := len(l.recentRequests)
	if n < 2 {
		return 0
	}
	span := l.recentRequests[n-1].Sub(l.recentRequests[0])
	if span <= 0 {
		return 0
	}
	return span / time.Duration(n-1)
}

func (l *Limiter) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-windowSize)
	i := 0
	for ; i < len(l.recentRequests); i++ {
		if l.recentRequests[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		l.recentRequests = append(l.recentRequests[:0], l.recentRequests[i:]...)
	}
}

func clampBackoff(d, floor, ceiling time.Duration) time.Duration {
	if d < floor {
		d = floor
	}
	if d > ceiling {
		d = ceiling
	}
	return d
}
