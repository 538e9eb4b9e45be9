package genqueue

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/parkerroan/genqueue/limiter"
)

// defaultMaxTracked bounds how many requester windows are kept in memory.
const defaultMaxTracked = 100_000

// RateLimitInfo is the window state of one requester.
type RateLimitInfo = limiter.RateLimitInfo

// RateLimiter keeps a sliding window per requester. Windows live in a size
// bounded LRU without a TTL: only the limiter's own pruning, on the times
// passed in by the caller, decides which timestamps are live. Sweep drops
// windows that have emptied.
//
// RateLimiter is safe for concurrent use, but the Coordinator still calls it
// under its own lock so that rate, queue and processing state move together.
type RateLimiter struct {
	windows     *lru.Cache[string, limiter.Limiter]
	newLimiter  limiter.NewLimiterFunc
	maxRequests int
	window      time.Duration
}

// NewRateLimiter creates a RateLimiter allowing maxRequests per window per
// requester, using newLimiter to build each requester's window. maxRequests
// below 1 is treated as 1.
func NewRateLimiter(newLimiter limiter.NewLimiterFunc, maxRequests int, window time.Duration) *RateLimiter {
	if newLimiter == nil {
		newLimiter = limiter.NewHeapLimiterConstructorFunc()
	}
	if maxRequests < 1 {
		maxRequests = 1
	}

	// lru.New only fails for a non-positive size.
	windows, _ := lru.New[string, limiter.Limiter](defaultMaxTracked)

	return &RateLimiter{
		windows:     windows,
		newLimiter:  newLimiter,
		maxRequests: maxRequests,
		window:      window,
	}
}

// CheckAndRecord prunes the requester's window and records now if the
// window still has room. Rejected attempts are not recorded.
func (rl *RateLimiter) CheckAndRecord(requesterID string, now time.Time) bool {
	return rl.windowFor(requesterID).TryAccept(now)
}

// Record adds ts to the requester's window without checking the limit.
func (rl *RateLimiter) Record(requesterID string, ts time.Time) {
	rl.windowFor(requesterID).Accept(ts)
}

// Info returns the requester's window state at now. It never records.
func (rl *RateLimiter) Info(requesterID string, now time.Time) RateLimitInfo {
	l, ok := rl.windows.Peek(requesterID)
	if !ok {
		return RateLimitInfo{
			Limit:     rl.maxRequests,
			Remaining: rl.maxRequests,
			Window:    rl.window,
		}
	}
	return l.Info(now)
}

// Sweep drops the windows that hold no live timestamps at now and returns
// how many were dropped.
func (rl *RateLimiter) Sweep(now time.Time) int {
	dropped := 0
	for _, id := range rl.windows.Keys() {
		l, ok := rl.windows.Peek(id)
		if ok && l.Info(now).Count == 0 {
			rl.windows.Remove(id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of requesters with a window.
func (rl *RateLimiter) Len() int { return rl.windows.Len() }

func (rl *RateLimiter) windowFor(requesterID string) limiter.Limiter {
	if l, ok := rl.windows.Get(requesterID); ok {
		return l
	}

	l := rl.newLimiter(rl.maxRequests, rl.window)
	rl.windows.Add(requesterID, l)
	return l
}
