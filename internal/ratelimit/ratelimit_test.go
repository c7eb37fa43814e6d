package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{"burst allows initial requests", 1, 3, 3, 3},
		{"exceeding burst blocks", 1, 2, 5, 2},
		{"single token", 1, 1, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)

			passed := 0
			for range tt.calls {
				if rl.Allow("key") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestEvery(t *testing.T) {
	tests := []struct {
		name string
		max  int
		per  time.Duration
		want time.Duration
	}{
		{"weebcentral", 1, 10 * time.Second, 10 * time.Second},
		{"mangadex", 5, time.Minute, 12 * time.Second},
		{"suwayomi", 10, time.Minute, 6 * time.Second},
		{"no max declared", 0, time.Minute, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Every(tt.max, tt.per))
		})
	}
}

func TestKeyedRateLimiter_ConfigureOverridesDefault(t *testing.T) {
	rl := New(1000, 1000)
	rl.Configure("japscan", 1, 5*time.Second)

	assert.True(t, rl.Allow("japscan"))
	assert.False(t, rl.Allow("japscan"), "second request inside the 5s window")

	// unconfigured keys keep the generous default
	for range 10 {
		assert.True(t, rl.Allow("other"))
	}
}

func TestKeyedRateLimiter_ReconfigureKeepsBucket(t *testing.T) {
	rl := New(1, 1)
	rl.Configure("mangadex", 1, time.Hour)
	require.True(t, rl.Allow("mangadex"))

	rl.Configure("mangadex", 1000, time.Second)
	require.Eventually(t, func() bool { return rl.Allow("mangadex") }, time.Second, 5*time.Millisecond)
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	rl := New(1, 1)
	rl.Configure("fast", 10, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "fast"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	start = time.Now()
	require.NoError(t, rl.Wait(ctx, "fast"))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	rl := New(1, 1)
	rl.Configure("slow", 1, 10*time.Second)
	rl.Allow("slow")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, rl.Wait(ctx, "slow"))
}

func TestKeyedRateLimiter_IndependentKeysAndForget(t *testing.T) {
	rl := New(1, 1)

	rl.Allow("key1")
	assert.False(t, rl.Allow("key1"))
	assert.True(t, rl.Allow("key2"))

	rl.Forget("key1")
	assert.True(t, rl.Allow("key1"), "forgotten key starts with a fresh bucket")
}
