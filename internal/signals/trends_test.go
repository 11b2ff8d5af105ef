package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrendProvider records batches and fails on request.
type fakeTrendProvider struct {
	batches    [][]string
	failBatch  int // 1-based index of the batch to fail; 0 fails none
	scoreValue float64
}

func (f *fakeTrendProvider) Trends(_ context.Context, keywords []string, _ string) (map[string]float64, error) {
	f.batches = append(f.batches, keywords)
	if f.failBatch == len(f.batches) {
		return nil, errors.New("quota exceeded")
	}
	out := make(map[string]float64, len(keywords))
	for _, kw := range keywords {
		out[kw] = f.scoreValue
	}
	return out, nil
}

func newTestClient(inner TrendProvider, batchSize int) *BatchedTrendClient {
	c := NewBatchedTrendClient(inner, batchSize, time.Millisecond)
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func keywordsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func TestBatchedTrendsSplitsBatches(t *testing.T) {
	inner := &fakeTrendProvider{scoreValue: 42}
	c := newTestClient(inner, 5)

	got, err := c.Trends(context.Background(), keywordsN(12), "PE")
	require.NoError(t, err)
	assert.Len(t, got, 12)
	require.Len(t, inner.batches, 3)
	assert.Len(t, inner.batches[0], 5)
	assert.Len(t, inner.batches[2], 2)
	assert.Equal(t, 42.0, got["a"])
}

func TestBatchedTrendsFailedBatchZeroesItsEntriesOnly(t *testing.T) {
	inner := &fakeTrendProvider{scoreValue: 70, failBatch: 2}
	c := newTestClient(inner, 5)

	got, err := c.Trends(context.Background(), keywordsN(12), "PE")
	require.NoError(t, err, "a failed batch degrades, it does not abort")
	assert.Len(t, got, 12)
	assert.Equal(t, 70.0, got["a"], "first batch unaffected")
	assert.Zero(t, got["f"], "second batch zeroed")
	assert.Zero(t, got["j"], "second batch zeroed")
	assert.Equal(t, 70.0, got["k"], "third batch unaffected")
}

func TestBatchedTrendsCancellationReturnsPartial(t *testing.T) {
	inner := &fakeTrendProvider{scoreValue: 30}
	ctx, cancel := context.WithCancel(context.Background())

	c := NewBatchedTrendClient(inner, 5, time.Millisecond)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	got, err := c.Trends(ctx, keywordsN(12), "PE")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, got, 5, "first batch collected before cancellation")
}

func TestBatchSizeClamped(t *testing.T) {
	c := NewBatchedTrendClient(&fakeTrendProvider{}, 1, 0)
	assert.Equal(t, 5, c.batchSize)
	assert.Equal(t, 2*time.Second, c.batchDelay)

	c = NewBatchedTrendClient(&fakeTrendProvider{}, 100, time.Second)
	assert.Equal(t, 20, c.batchSize)
}
