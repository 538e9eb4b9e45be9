package genqueue

import (
	"container/heap"
	"sort"
)

// ProcessingChecker reports whether a requester has work in flight.
type ProcessingChecker interface {
	IsProcessing(requesterID string) bool
}

// QueueSnapshot is a point-in-time view of an AdmissionQueue.
type QueueSnapshot struct {
	Size       int
	Capacity   int
	WaitingIDs []string // in dequeue order
}

// AdmissionQueue is a bounded priority queue holding at most one pending
// item per requester. Items with equal priority leave in insertion order.
//
// AdmissionQueue is not safe for concurrent use; the Coordinator serializes
// access to it.
type AdmissionQueue struct {
	pq          priorityQueue
	byRequester map[string]*entry
	capacity    int
	processing  ProcessingChecker
	seq         uint64
}

// NewAdmissionQueue creates a queue holding at most capacity items. The
// processing checker is consulted to reject requesters with work in flight;
// it may be nil.
func NewAdmissionQueue(capacity int, processing ProcessingChecker) *AdmissionQueue {
	pq := make(priorityQueue, 0, capacity)
	heap.Init(&pq)
	return &AdmissionQueue{
		pq:          pq,
		byRequester: make(map[string]*entry, capacity),
		capacity:    capacity,
		processing:  processing,
	}
}

// TryEnqueue inserts item and returns its 1-based position. Rejections are
// checked in order: full queue, pending duplicate, work in flight.
func (q *AdmissionQueue) TryEnqueue(item QueueItem) (int, Reason) {
	if q.pq.Len() >= q.capacity {
		return 0, ReasonQueueFull
	}
	if _, ok := q.byRequester[item.RequesterID]; ok {
		return 0, ReasonDuplicateInQueue
	}
	if q.processing != nil && q.processing.IsProcessing(item.RequesterID) {
		return 0, ReasonAlreadyProcessing
	}

	q.seq++
	e := &entry{item: item, seq: q.seq}
	heap.Push(&q.pq, e)
	q.byRequester[item.RequesterID] = e

	return q.rank(e), ReasonNone
}

// DequeueFront removes and returns the highest priority, earliest inserted item.
func (q *AdmissionQueue) DequeueFront() (QueueItem, bool) {
	if q.pq.Len() == 0 {
		return QueueItem{}, false
	}

	e := heap.Pop(&q.pq).(*entry)
	delete(q.byRequester, e.item.RequesterID)
	return e.item, true
}

// Remove drops the pending item of requesterID and reports whether one existed.
func (q *AdmissionQueue) Remove(requesterID string) bool {
	e, ok := q.byRequester[requesterID]
	if !ok {
		return false
	}

	heap.Remove(&q.pq, e.index)
	delete(q.byRequester, requesterID)
	return true
}

// PositionOf returns the 1-based rank of the requester's pending item.
func (q *AdmissionQueue) PositionOf(requesterID string) (int, bool) {
	e, ok := q.byRequester[requesterID]
	if !ok {
		return 0, false
	}
	return q.rank(e), true
}

// Contains reports whether requesterID has a pending item.
func (q *AdmissionQueue) Contains(requesterID string) bool {
	_, ok := q.byRequester[requesterID]
	return ok
}

// Len returns the number of pending items.
func (q *AdmissionQueue) Len() int { return q.pq.Len() }

// Snapshot returns the queue contents in dequeue order.
func (q *AdmissionQueue) Snapshot() QueueSnapshot {
	ordered := make([]*entry, len(q.pq))
	copy(ordered, q.pq)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].before(ordered[j]) })

	ids := make([]string, len(ordered))
	for i, e := range ordered {
		ids[i] = e.item.RequesterID
	}

	return QueueSnapshot{
		Size:       len(ordered),
		Capacity:   q.capacity,
		WaitingIDs: ids,
	}
}

// rank counts the entries ahead of e. The heap is only partially ordered,
// so every entry is visited.
func (q *AdmissionQueue) rank(e *entry) int {
	ahead := 0
	for _, other := range q.pq {
		if other != e && other.before(e) {
			ahead++
		}
	}
	return ahead + 1
}
