package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	got, err := RetryWithResult(context.Background(), fastRetryConfig(3), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", NetworkError("timeout", nil)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsBudget(t *testing.T) {
	attempts := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(2), func() (int, error) {
		attempts++
		return 0, NetworkError("timeout", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "initial attempt plus two retries")
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(5), func() (int, error) {
		attempts++
		return 0, CaptchaError("autocomplete")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "captcha never improves with retries")
}

func TestRetryPlainErrorsAreRetried(t *testing.T) {
	attempts := 0
	_ = Retry(context.Background(), fastRetryConfig(2), func() error {
		attempts++
		return stderrors.New("flaky")
	})
	assert.Equal(t, 3, attempts)
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := RetryWithResult(ctx, fastRetryConfig(3), func() (int, error) {
		attempts++
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts)
}
