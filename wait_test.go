package genqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForTurn(t *testing.T) {
	c := newTestCoordinator(newFakeClock())
	require.True(t, c.AddRequest("first", "p", 0).Accepted)
	require.True(t, c.AddRequest("second", "p", 0).Accepted)

	go func() {
		time.Sleep(20 * time.Millisecond)
		item, _ := c.GetNext()
		c.CompleteRequest(item.RequesterID)
		c.GetNext()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := WaitForTurn(ctx, c, "second")
	require.NoError(t, err)
	assert.Equal(t, StateProcessing, state)
}

func TestWaitForTurn_NotQueued(t *testing.T) {
	c := newTestCoordinator(newFakeClock())

	state, err := WaitForTurn(context.Background(), c, "nobody")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)
}

func TestWaitForTurn_ContextDone(t *testing.T) {
	c := newTestCoordinator(newFakeClock())
	require.True(t, c.AddRequest("r", "p", 0).Accepted)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	state, err := WaitForTurn(ctx, c, "r")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateQueued, state)
}
