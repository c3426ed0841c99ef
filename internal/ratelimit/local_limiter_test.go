package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiterAllowsBurst(t *testing.T) {
	l := NewLocalLimiter(5, time.Minute)
	require.NoError(t, l.Connect(context.Background()))

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.WaitIfNeeded(context.Background(), "example.com"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "burst within budget does not block")
}

func TestLocalLimiterBlocksOverBudget(t *testing.T) {
	l := NewLocalLimiter(2, 100*time.Millisecond)

	require.NoError(t, l.WaitIfNeeded(context.Background(), "example.com"))
	require.NoError(t, l.WaitIfNeeded(context.Background(), "example.com"))

	start := time.Now()
	require.NoError(t, l.WaitIfNeeded(context.Background(), "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond, "third request waits for a token")
}

func TestLocalLimiterIsPerDomain(t *testing.T) {
	l := NewLocalLimiter(1, time.Minute)

	require.NoError(t, l.WaitIfNeeded(context.Background(), "a.example"))

	start := time.Now()
	require.NoError(t, l.WaitIfNeeded(context.Background(), "b.example"))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "different domains do not share buckets")
}

func TestLocalLimiterHonorsContext(t *testing.T) {
	l := NewLocalLimiter(1, time.Hour)
	require.NoError(t, l.WaitIfNeeded(context.Background(), "example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.WaitIfNeeded(ctx, "example.com")
	assert.Error(t, err)
}
