package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRingLimiter(t *testing.T) {
	// Create a new RingLimiter with size 3 and window 1 second.
	rl := NewRingLimiter(3, time.Second)
	now := time.Now()

	// Check that the first 3 requests are allowed.
	assert.True(t, rl.TryAccept(now), "First request should be allowed")
	assert.True(t, rl.TryAccept(now), "Second request should be allowed")
	assert.True(t, rl.TryAccept(now), "Third request should be allowed")

	// Check that the fourth request is not allowed.
	assert.False(t, rl.TryAccept(now.Add(500*time.Millisecond)), "Fourth request should not be allowed")

	// Wait for 1 second and check that the fourth request is now allowed.
	assert.True(t, rl.TryAccept(now.Add(time.Second)), "Fourth request should be allowed after 1 second")
}

func TestRingLimiter_Info(t *testing.T) {
	rl := NewRingLimiter(3, time.Minute)
	now := time.Now()

	assert.Equal(t, 0, rl.Info(now).Count)
	assert.Equal(t, time.Duration(0), rl.Info(now).Reset)

	rl.TryAccept(now)
	rl.TryAccept(now.Add(30 * time.Second))

	info := rl.Info(now.Add(45 * time.Second))
	assert.Equal(t, 2, info.Count)
	assert.Equal(t, 1, info.Remaining)
	assert.Equal(t, 15*time.Second, info.Reset)

	info = rl.Info(now.Add(70 * time.Second))
	assert.Equal(t, 1, info.Count)
	assert.Equal(t, 20*time.Second, info.Reset)
}

func TestRingLimiter_LimitDetails(t *testing.T) {
	rl := NewRingLimiter(2, 500*time.Millisecond)

	size, window := rl.LimitDetails()
	assert.Equal(t, 2, size)
	assert.Equal(t, 500*time.Millisecond, window)
}

func BenchmarkRingLimiter(b *testing.B) {
	rl := NewRingLimiter(10, time.Second)
	now := time.Now()

	for i := 0; i < b.N; i++ {
		rl.TryAccept(now)
	}
}
