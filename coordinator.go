package genqueue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parkerroan/genqueue/clock"
	"github.com/parkerroan/genqueue/limiter"
	"golang.org/x/exp/slog"
)

const (
	defaultMaxQueueSize = 10
	defaultMaxRequests  = 5
	defaultWindow       = 60 * time.Second
)

// AddResult is the outcome of Coordinator.AddRequest.
type AddResult struct {
	Accepted bool
	Reason   Reason
	Position int    // 1-based, set when accepted
	ItemID   string // set when accepted
	At       time.Time
	// RateLimit is the requester's window after the attempt. For
	// ReasonRateLimited it tells the caller when to retry.
	RateLimit RateLimitInfo
}

// Err returns the sentinel error of the rejection reason, or nil.
func (r AddResult) Err() error { return r.Reason.Err() }

// QueueInfo summarizes the coordinator state.
type QueueInfo struct {
	QueueSize       int      `json:"queue_size"`
	ProcessingCount int      `json:"processing"`
	MaxSize         int      `json:"max_size"`
	WaitingIDs      []string `json:"waiting"`
	ProcessingIDs   []string `json:"processing_ids"`
}

// Status is what a requester sees about its own work.
type Status struct {
	State     State         `json:"-"`
	StateName string        `json:"state"`
	Position  int           `json:"position,omitempty"`
	RateLimit RateLimitInfo `json:"-"`
}

// Coordinator is the single serialization point of the admission core. It
// owns a RateLimiter, an AdmissionQueue and a ProcessingRegistry and mutates
// all three under one mutex, so that concurrent admissions for the same
// requester can never both pass the duplicate check.
//
// No method holds the lock across I/O: logging happens after unlock, and the
// generation call itself is made by the caller between GetNext and
// CompleteRequest.
type Coordinator struct {
	mu         sync.Mutex
	limiter    *RateLimiter
	queue      *AdmissionQueue
	processing *ProcessingRegistry

	maxQueueSize  int
	maxRequests   int
	window        time.Duration
	maxProcessing int
	lastSweep     time.Time
	newLimiter    limiter.NewLimiterFunc
	clock         clock.Clock
	logger        *slog.Logger
}

// WithMaxQueueSize sets the admission queue capacity. Default 10.
func WithMaxQueueSize(size int) func(*Coordinator) {
	return func(c *Coordinator) {
		if size > 0 {
			c.maxQueueSize = size
		}
	}
}

// WithMaxRequests sets the requests allowed per requester per window. Default 5.
func WithMaxRequests(maxRequests int) func(*Coordinator) {
	return func(c *Coordinator) {
		if maxRequests > 0 {
			c.maxRequests = maxRequests
		}
	}
}

// WithWindow sets the rate window. Default 60s.
func WithWindow(window time.Duration) func(*Coordinator) {
	return func(c *Coordinator) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithLimiterConstructorFunc sets how per-requester windows are built.
// Default limiter.NewHeapLimiterConstructorFunc().
func WithLimiterConstructorFunc(fn limiter.NewLimiterFunc) func(*Coordinator) {
	return func(c *Coordinator) {
		if fn != nil {
			c.newLimiter = fn
		}
	}
}

// WithMaxProcessing caps how many items may be in flight at once. GetNext
// returns nothing while the cap is reached. Default 0 means no cap beyond
// one item per requester.
func WithMaxProcessing(n int) func(*Coordinator) {
	return func(c *Coordinator) {
		if n >= 0 {
			c.maxProcessing = n
		}
	}
}

// WithClock sets the time source. Default clock.System.
func WithClock(clk clock.Clock) func(*Coordinator) {
	return func(c *Coordinator) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) func(*Coordinator) {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a Coordinator from the given options.
func NewCoordinator(opts ...func(*Coordinator)) *Coordinator {
	c := &Coordinator{
		maxQueueSize: defaultMaxQueueSize,
		maxRequests:  defaultMaxRequests,
		window:       defaultWindow,
		newLimiter:   limiter.NewHeapLimiterConstructorFunc(),
		clock:        clock.System{},
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.limiter = NewRateLimiter(c.newLimiter, c.maxRequests, c.window)
	c.processing = NewProcessingRegistry()
	c.queue = NewAdmissionQueue(c.maxQueueSize, c.processing)

	return c
}

// AddRequest admits a request for requesterID. The rate window is checked
// first; an attempt that passes it consumes quota even if the queue then
// rejects it.
func (c *Coordinator) AddRequest(requesterID, payload string, priority int) AddResult {
	c.mu.Lock()
	res, size := c.addRequest(requesterID, payload, priority)
	c.mu.Unlock()

	if !res.Accepted {
		c.logger.Info("request rejected",
			slog.String("requester", requesterID),
			slog.String("reason", res.Reason.String()),
			slog.Int("queue_size", size),
		)
		return res
	}

	c.logger.Info("request queued",
		slog.String("requester", requesterID),
		slog.String("item", res.ItemID),
		slog.Int("position", res.Position),
		slog.Int("priority", priority),
		slog.Int("queue_size", size),
	)
	return res
}

func (c *Coordinator) addRequest(requesterID, payload string, priority int) (AddResult, int) {
	now := c.clock.Now()
	c.sweep(now)

	if !c.limiter.CheckAndRecord(requesterID, now) {
		return AddResult{
			Reason:    ReasonRateLimited,
			At:        now,
			RateLimit: c.limiter.Info(requesterID, now),
		}, c.queue.Len()
	}

	item := QueueItem{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Payload:     payload,
		EnqueuedAt:  now,
		Priority:    priority,
	}

	position, reason := c.queue.TryEnqueue(item)
	res := AddResult{
		Accepted:  reason == ReasonNone,
		Reason:    reason,
		Position:  position,
		At:        now,
		RateLimit: c.limiter.Info(requesterID, now),
	}
	if res.Accepted {
		res.ItemID = item.ID
	}

	return res, c.queue.Len()
}

// sweep drops emptied rate windows at most once per window.
func (c *Coordinator) sweep(now time.Time) {
	if now.Sub(c.lastSweep) < c.window {
		return
	}
	c.limiter.Sweep(now)
	c.lastSweep = now
}

// GetNext moves the front item of the queue into the processing registry
// and returns it. It returns false when the queue is empty or the processing
// cap is reached; callers poll again after a short delay.
func (c *Coordinator) GetNext() (QueueItem, bool) {
	c.mu.Lock()
	item, ok := c.getNext()
	c.mu.Unlock()

	if ok {
		c.logger.Info("processing request",
			slog.String("requester", item.RequesterID),
			slog.String("item", item.ID),
			slog.Duration("waited", c.clock.Now().Sub(item.EnqueuedAt)),
		)
	}
	return item, ok
}

func (c *Coordinator) getNext() (QueueItem, bool) {
	if c.maxProcessing > 0 && c.processing.Count() >= c.maxProcessing {
		return QueueItem{}, false
	}

	item, ok := c.queue.DequeueFront()
	if !ok {
		return QueueItem{}, false
	}

	c.processing.Begin(item)
	return item, true
}

// CompleteRequest clears the requester's processing slot. It is always safe
// to call, including from cleanup paths after failures, and reports whether
// a slot was cleared.
func (c *Coordinator) CompleteRequest(requesterID string) bool {
	c.mu.Lock()
	ended := c.processing.End(requesterID)
	c.mu.Unlock()

	if ended {
		c.logger.Info("completed request", slog.String("requester", requesterID))
	}
	return ended
}

// CancelRequest removes the requester's pending item. Work already in
// flight cannot be cancelled here and yields false.
func (c *Coordinator) CancelRequest(requesterID string) bool {
	c.mu.Lock()
	removed := c.queue.Remove(requesterID)
	inFlight, busy := c.processing.Get(requesterID)
	c.mu.Unlock()

	switch {
	case removed:
		c.logger.Info("cancelled request", slog.String("requester", requesterID))
	case busy:
		c.logger.Info("request in progress, cannot cancel",
			slog.String("requester", requesterID),
			slog.String("item", inFlight.ID),
		)
	}
	return removed
}

// PositionOf returns the requester's 1-based queue position.
func (c *Coordinator) PositionOf(requesterID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.PositionOf(requesterID)
}

// State returns the lifecycle state of requesterID.
func (c *Coordinator) State(requesterID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state(requesterID)
}

func (c *Coordinator) state(requesterID string) State {
	switch {
	case c.processing.IsProcessing(requesterID):
		return StateProcessing
	case c.queue.Contains(requesterID):
		return StateQueued
	default:
		return StateIdle
	}
}

// QueueInfo returns a snapshot of the queue and processing state.
func (c *Coordinator) QueueInfo() QueueInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.queue.Snapshot()
	return QueueInfo{
		QueueSize:       snap.Size,
		ProcessingCount: c.processing.Count(),
		MaxSize:         snap.Capacity,
		WaitingIDs:      snap.WaitingIDs,
		ProcessingIDs:   c.processing.IDs(),
	}
}

// Status returns the requester's state, queue position and rate window, all
// read at the same moment.
func (c *Coordinator) Status(requesterID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:     c.state(requesterID),
		RateLimit: c.limiter.Info(requesterID, c.clock.Now()),
	}
	if pos, ok := c.queue.PositionOf(requesterID); ok {
		st.Position = pos
	}
	st.StateName = st.State.String()
	return st
}

// RateLimitInfo returns the requester's window state.
func (c *Coordinator) RateLimitInfo(requesterID string) RateLimitInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter.Info(requesterID, c.clock.Now())
}

// RecordRemote folds an admission made by another replica at ts into the
// requester's rate window. Queues are not shared between replicas.
func (c *Coordinator) RecordRemote(requesterID string, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limiter.Record(requesterID, ts)
}

// Now returns the coordinator's clock reading.
func (c *Coordinator) Now() time.Time { return c.clock.Now() }
