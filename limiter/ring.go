package limiter

import (
	"container/ring"
	"sync"
	"time"
)

// RingLimiter is an implementation of the Limiter interface using a ring buffer.
// It keeps the last size timestamps in arrival order and uses a fixed size
// array, so it is cheaper than the HeapLimiter. Timestamps that arrive out of
// order (replicated requests) are treated as if they arrived now.
type RingLimiter struct {
	ring   *ring.Ring // points at the oldest slot
	size   int
	window time.Duration
	mutex  sync.Mutex
}

// NewRingLimiterConstructorFunc returns a NewLimiterFunc that creates RingLimiters.
func NewRingLimiterConstructorFunc() NewLimiterFunc {
	return func(size int, window time.Duration) Limiter {
		return NewRingLimiter(size, window)
	}
}

// NewRingLimiter creates a RingLimiter. A size below 1 is treated as 1.
func NewRingLimiter(size int, window time.Duration) *RingLimiter {
	size = atLeastOne(size)
	return &RingLimiter{
		size:   size,
		ring:   ring.New(size),
		window: window,
	}
}

// TryAccept checks if it's within the rate limits and adds a new request to the ring buffer.
func (rl *RingLimiter) TryAccept(now time.Time) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if !rl.try(now) {
		return false
	}

	rl.accept(now)
	return true
}

// Accept adds a new request to the ring buffer, overwriting the oldest one.
func (rl *RingLimiter) Accept(now time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.accept(now)
}

// Info reports the window state at now.
func (rl *RingLimiter) Info(now time.Time) RateLimitInfo {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	count := 0
	var oldest time.Time
	rl.ring.Do(func(v any) {
		ts, ok := v.(time.Time)
		if !ok || !rl.live(ts, now) {
			return
		}
		count++
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	})

	var reset time.Duration
	if count > 0 {
		reset = rl.window - now.Sub(oldest)
	}

	return newInfo(count, rl.size, rl.window, reset)
}

// LimitDetails returns the size and window of the limiter.
func (rl *RingLimiter) LimitDetails() (int, time.Duration) {
	return rl.size, rl.window
}

// try checks if the oldest slot is free or has left the window.
func (rl *RingLimiter) try(now time.Time) bool {
	ts, ok := rl.ring.Value.(time.Time)
	return !ok || !rl.live(ts, now)
}

func (rl *RingLimiter) accept(now time.Time) {
	rl.ring.Value = now
	rl.ring = rl.ring.Next()
}

func (rl *RingLimiter) live(ts, now time.Time) bool {
	return now.Sub(ts) < rl.window
}
