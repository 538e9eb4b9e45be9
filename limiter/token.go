package limiter

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// TokenLimiter is an implementation of the Limiter interface using the rate
// package. The bucket holds size tokens and refills one token every
// window/size, so bursts are smoothed instead of counted per window.
type TokenLimiter struct {
	limiter *rate.Limiter
	size    int
	window  time.Duration
}

// NewTokenLimiterConstructorFunc returns a NewLimiterFunc that creates TokenLimiters.
func NewTokenLimiterConstructorFunc() NewLimiterFunc {
	return func(size int, window time.Duration) Limiter {
		return NewTokenLimiter(size, window)
	}
}

// NewTokenLimiter constructs a TokenLimiter. The size is the number of tokens
// that the bucket starts with, and the window is how long a full refill takes.
// A size below 1 is treated as 1.
func NewTokenLimiter(size int, window time.Duration) *TokenLimiter {
	size = atLeastOne(size)
	limit := rate.Every(window / time.Duration(size))

	return &TokenLimiter{
		limiter: rate.NewLimiter(limit, size),
		size:    size,
		window:  window,
	}
}

// TryAccept takes a token at now if one is available.
func (r *TokenLimiter) TryAccept(now time.Time) bool {
	return r.limiter.AllowN(now, 1)
}

// Accept takes a token at now even if the bucket is empty, pushing it into debt.
func (r *TokenLimiter) Accept(now time.Time) {
	_ = r.limiter.ReserveN(now, 1)
}

// Info reports the bucket state at now. Count is the number of tokens in use
// and Reset is the time until the bucket is full again.
func (r *TokenLimiter) Info(now time.Time) RateLimitInfo {
	tokens := r.limiter.TokensAt(now)
	used := float64(r.size) - tokens
	if used < 0 {
		used = 0
	}

	perToken := r.window / time.Duration(r.size)
	reset := time.Duration(used * float64(perToken))

	return newInfo(int(math.Ceil(used)), r.size, r.window, reset)
}

// LimitDetails returns the size and window of the limiter.
func (r *TokenLimiter) LimitDetails() (int, time.Duration) {
	return r.size, r.window
}
