package genqueue

import "time"

// QueueItem is a single generation request. It is owned by the
// AdmissionQueue until dequeued and by the ProcessingRegistry afterwards.
type QueueItem struct {
	ID          string    // unique id of this request
	RequesterID string    // stable identity of the submitter
	Payload     string    // the prompt, opaque to the queue
	EnqueuedAt  time.Time // admission time
	Priority    int       // higher is more urgent
}

// State is the lifecycle state of a requester.
type State int

const (
	StateIdle State = iota
	StateQueued
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}
