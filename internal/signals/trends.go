package signals

import (
	"context"
	"log/slog"
	"time"
)

// BatchedTrendClient wraps a TrendProvider with batch splitting and
// inter-batch pacing. Trend backends throttle aggressively, so requests go
// out in small groups with a fixed delay between them. A failed batch
// degrades to zeroed entries for that batch only; other batches are
// unaffected.
type BatchedTrendClient struct {
	inner TrendProvider

	batchSize  int
	batchDelay time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

const (
	minBatchSize     = 5
	maxBatchSize     = 20
	defaultBatchWait = 2 * time.Second
)

// NewBatchedTrendClient wraps inner. batchSize is clamped to [5,20]; a
// non-positive delay uses the 2s default.
func NewBatchedTrendClient(inner TrendProvider, batchSize int, batchDelay time.Duration) *BatchedTrendClient {
	if batchSize < minBatchSize {
		batchSize = minBatchSize
	}
	if batchSize > maxBatchSize {
		batchSize = maxBatchSize
	}
	if batchDelay <= 0 {
		batchDelay = defaultBatchWait
	}
	return &BatchedTrendClient{
		inner:      inner,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		sleep: func(ctx context.Context, d time.Duration) error {
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

// Trends implements TrendProvider. Context cancellation between batches
// returns what was collected so far along with the context error.
func (c *BatchedTrendClient) Trends(ctx context.Context, keywords []string, geoCode string) (map[string]float64, error) {
	out := make(map[string]float64, len(keywords))

	for start := 0; start < len(keywords); start += c.batchSize {
		end := start + c.batchSize
		if end > len(keywords) {
			end = len(keywords)
		}
		batch := keywords[start:end]

		scores, err := c.inner.Trends(ctx, batch, geoCode)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			// Degrade this batch only.
			slog.Warn("trend batch failed, zeroing entries",
				"batch_start", start, "batch_size", len(batch), "error", err)
			for _, kw := range batch {
				out[kw] = 0
			}
		} else {
			for kw, s := range scores {
				out[kw] = s
			}
		}

		if end < len(keywords) {
			if err := c.sleep(ctx, c.batchDelay); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}
