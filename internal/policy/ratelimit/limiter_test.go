package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Disabled(t *testing.T) {
	l := New(Config{})
	assert.False(t, l.Enabled())

	start := time.Now()
	for range 100 {
		require.NoError(t, l.Wait(context.Background(), "https://example.com/"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_Wait(t *testing.T) {
	// 10 RPS is one token every 100ms.
	l := New(Config{PerHostRPS: 10, PerHostBurst: 1})
	require.True(t, l.Enabled())
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://test.com/a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://test.com/b"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_DifferentHosts(t *testing.T) {
	l := New(Config{PerHostRPS: 1, PerHostBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.com/1"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "host b must not wait on host a")
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := New(Config{PerHostRPS: 0.1, PerHostBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.com/"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, "https://slow.com/")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiter_NilIsDisabled(t *testing.T) {
	var l *Limiter
	assert.False(t, l.Enabled())
	assert.NoError(t, l.Wait(context.Background(), "https://example.com/"))
}
