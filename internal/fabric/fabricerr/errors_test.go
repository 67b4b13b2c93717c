package fabricerr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsByKind(t *testing.T) {
	err := New(InvalidQuery, "empty query")
	assert.True(t, Is(err, InvalidQuery))
	assert.False(t, Is(err, Storage))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Storage, "write failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestFieldError(t *testing.T) {
	err := Field(Validation, "embedding.dimension", "must be positive", "0")
	assert.Contains(t, err.Error(), "embedding.dimension")
	assert.Contains(t, err.Error(), "must be positive")
}

func TestRetryOnlyTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Multiplier: 2, Cap: time.Second}, func() error {
		calls++
		return New(Validation, "not retryable")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryEventualSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Multiplier: 2, Cap: time.Second}, func() error {
		calls++
		if calls < 3 {
			return New(Storage, "transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Multiplier: 2, Cap: time.Second}, func() error {
		calls++
		return New(Storage, "still down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, Is(err, Storage))
}
