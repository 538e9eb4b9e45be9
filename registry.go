package genqueue

import (
	"fmt"
	"sort"
)

// ProcessingRegistry tracks the requesters whose items are being serviced.
// It is not safe for concurrent use; the Coordinator serializes access to it.
type ProcessingRegistry struct {
	active map[string]QueueItem
}

// NewProcessingRegistry returns an empty registry.
func NewProcessingRegistry() *ProcessingRegistry {
	return &ProcessingRegistry{active: make(map[string]QueueItem)}
}

// Begin records item as in flight. Beginning a requester that is already in
// flight means the caller bypassed the Coordinator, and Begin panics.
func (r *ProcessingRegistry) Begin(item QueueItem) {
	if _, holds := r.active[item.RequesterID]; holds {
		panic(fmt.Sprintf("genqueue: requester %q is already processing", item.RequesterID))
	}
	r.active[item.RequesterID] = item
}

// End clears the requester's entry. It reports whether an entry existed and
// is a no-op otherwise, so cleanup paths may call it unconditionally.
func (r *ProcessingRegistry) End(requesterID string) bool {
	if _, ok := r.active[requesterID]; !ok {
		return false
	}
	delete(r.active, requesterID)
	return true
}

// IsProcessing reports whether requesterID has an item in flight.
func (r *ProcessingRegistry) IsProcessing(requesterID string) bool {
	_, ok := r.active[requesterID]
	return ok
}

// Get returns the in-flight item of requesterID.
func (r *ProcessingRegistry) Get(requesterID string) (QueueItem, bool) {
	item, ok := r.active[requesterID]
	return item, ok
}

// Count returns the number of items in flight.
func (r *ProcessingRegistry) Count() int { return len(r.active) }

// IDs returns the in-flight requester ids, sorted.
func (r *ProcessingRegistry) IDs() []string {
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
