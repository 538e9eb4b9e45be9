// Package limiter provides single-key window limiters. Each limiter tracks the
// requests of one requester; the genqueue RateLimiter keeps one per requester.
package limiter

import "time"

// Limiter is the interface that abstracts the limitations functionality.
type Limiter interface {
	// TryAccept checks the request against the window and records it only
	// when it is allowed.
	TryAccept(now time.Time) bool
	// Accept records a request without checking the limit. It is used for
	// requests admitted elsewhere, e.g. by another replica.
	Accept(now time.Time)
	// Info reports the window state without recording anything.
	Info(now time.Time) RateLimitInfo
	// LimitDetails returns the size and window of the limiter.
	LimitDetails() (int, time.Duration)
}

// NewLimiterFunc builds a Limiter for a size and window.
type NewLimiterFunc func(size int, window time.Duration) Limiter

// RateLimitInfo describes the state of a window at a point in time.
type RateLimitInfo struct {
	Count     int           // requests recorded within the window
	Limit     int           // max requests per window
	Remaining int           // requests still allowed
	Window    time.Duration // window length
	Reset     time.Duration // time until the oldest request leaves the window
}

func newInfo(count, size int, window, reset time.Duration) RateLimitInfo {
	remaining := size - count
	if remaining < 0 {
		remaining = 0
	}
	if reset < 0 {
		reset = 0
	}
	return RateLimitInfo{
		Count:     count,
		Limit:     size,
		Remaining: remaining,
		Window:    window,
		Reset:     reset,
	}
}

func atLeastOne(size int) int {
	if size < 1 {
		return 1
	}
	return size
}
