package limiter

import (
	"container/heap"
	"sync"
	"time"
)

// item represents a single recorded request in the heap.
type item struct {
	timestamp time.Time // The timestamp of the request
	index     int       // The index is maintained by the heap.Interface methods.
}

// timestampQueue implements heap.Interface and holds items ordered by timestamp.
type timestampQueue []*item

func (pq timestampQueue) Len() int { return len(pq) }

func (pq timestampQueue) Less(i, j int) bool {
	// Min heap: the earliest timestamp is the root.
	return pq[i].timestamp.Before(pq[j].timestamp)
}

func (pq timestampQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *timestampQueue) Push(x interface{}) {
	n := len(*pq)
	it := x.(*item)
	it.index = n
	*pq = append(*pq, it)
}

func (pq *timestampQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // avoid memory leak
	it.index = -1
	*pq = old[0 : n-1]
	return it
}

// HeapLimiter is a sliding window limiter backed by a min-heap of timestamps.
// The heap is sorted by timestamp value rather than arrival order, so
// requests replicated from other hosts with older timestamps age out at the
// right moment. This is the default limiter.
type HeapLimiter struct {
	pq     timestampQueue
	window time.Duration
	size   int
	mutex  sync.Mutex
}

// NewHeapLimiterConstructorFunc returns a NewLimiterFunc that creates HeapLimiters.
func NewHeapLimiterConstructorFunc() NewLimiterFunc {
	return func(size int, window time.Duration) Limiter {
		return NewHeapLimiter(size, window)
	}
}

// NewHeapLimiter returns a new HeapLimiter. A size below 1 is treated as 1.
func NewHeapLimiter(size int, window time.Duration) *HeapLimiter {
	size = atLeastOne(size)
	pq := make(timestampQueue, 0, size)
	heap.Init(&pq)
	return &HeapLimiter{
		pq:     pq,
		size:   size,
		window: window,
	}
}

// TryAccept prunes expired requests and records now if fewer than size
// requests remain in the window.
func (hl *HeapLimiter) TryAccept(now time.Time) bool {
	hl.mutex.Lock()
	defer hl.mutex.Unlock()

	hl.prune(now)
	if hl.pq.Len() >= hl.size {
		return false
	}

	hl.accept(now)
	return true
}

// Accept records now regardless of the limit.
func (hl *HeapLimiter) Accept(now time.Time) {
	hl.mutex.Lock()
	defer hl.mutex.Unlock()

	hl.prune(now)
	hl.accept(now)
}

// Info reports the window state at now.
func (hl *HeapLimiter) Info(now time.Time) RateLimitInfo {
	hl.mutex.Lock()
	defer hl.mutex.Unlock()

	hl.prune(now)

	var reset time.Duration
	if hl.pq.Len() > 0 {
		reset = hl.window - now.Sub(hl.pq[0].timestamp)
	}

	return newInfo(hl.pq.Len(), hl.size, hl.window, reset)
}

// LimitDetails returns the size and window of the limiter.
func (hl *HeapLimiter) LimitDetails() (int, time.Duration) {
	return hl.size, hl.window
}

func (hl *HeapLimiter) accept(now time.Time) {
	heap.Push(&hl.pq, &item{timestamp: now})
}

// prune removes the timestamps that are out of the window range.
func (hl *HeapLimiter) prune(now time.Time) {
	for hl.pq.Len() > 0 && now.Sub(hl.pq[0].timestamp) >= hl.window {
		heap.Pop(&hl.pq)
	}
}
