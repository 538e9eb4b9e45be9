package genqueue

import "errors"

// ErrRejected is wrapped by every admission rejection error. Callers can use
// errors.Is(err, ErrRejected) to check for the whole class.
var ErrRejected = errors.New("request rejected")

var (
	// ErrRateLimited indicates the requester exhausted its window.
	ErrRateLimited = wrapRejected("rate limit exceeded")
	// ErrQueueFull indicates the admission queue is at capacity.
	ErrQueueFull = wrapRejected("queue is full")
	// ErrDuplicateInQueue indicates the requester already has a pending item.
	ErrDuplicateInQueue = wrapRejected("requester already has a request in queue")
	// ErrAlreadyProcessing indicates the requester has a generation in progress.
	ErrAlreadyProcessing = wrapRejected("requester already has a request in progress")
)

type rejection struct{ msg string }

func (r *rejection) Error() string { return r.msg }
func (r *rejection) Unwrap() error { return ErrRejected }

func wrapRejected(msg string) error { return &rejection{msg: msg} }

// Reason is the closed set of outcomes of an admission attempt. It is a
// low-cardinality value suitable for logs and metrics labels.
type Reason int

const (
	// ReasonNone means the request was admitted.
	ReasonNone Reason = iota
	ReasonRateLimited
	ReasonQueueFull
	ReasonDuplicateInQueue
	ReasonAlreadyProcessing
)

// String returns a human-readable representation of the Reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonRateLimited:
		return "RateLimited"
	case ReasonQueueFull:
		return "QueueFull"
	case ReasonDuplicateInQueue:
		return "DuplicateInQueue"
	case ReasonAlreadyProcessing:
		return "AlreadyProcessing"
	default:
		return "Unknown"
	}
}

// Err returns the sentinel error for the reason, or nil for ReasonNone.
func (r Reason) Err() error {
	switch r {
	case ReasonNone:
		return nil
	case ReasonRateLimited:
		return ErrRateLimited
	case ReasonQueueFull:
		return ErrQueueFull
	case ReasonDuplicateInQueue:
		return ErrDuplicateInQueue
	case ReasonAlreadyProcessing:
		return ErrAlreadyProcessing
	default:
		return ErrRejected
	}
}
