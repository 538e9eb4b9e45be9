package genqueue

import "context"

// WaitForTurn polls the coordinator until requesterID leaves the Queued
// state and returns the state it moved to: Processing once a worker picked
// the item up, or Idle if it was cancelled or already completed.
//
// The wait never holds the coordinator lock; each poll is its own critical
// section, so other requesters keep being dequeued meanwhile.
func WaitForTurn(ctx context.Context, coord *Coordinator, requesterID string) (State, error) {
	b := newPollBackoff(defaultPollMin, defaultPollMax)

	var state State
	err := pollUntil(ctx, b, func() bool {
		state = coord.State(requesterID)
		return state != StateQueued
	})
	return state, err
}
