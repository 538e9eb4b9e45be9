package genqueue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(requesterID string, priority int) QueueItem {
	return QueueItem{ID: "item-" + requesterID, RequesterID: requesterID, Payload: "prompt", Priority: priority}
}

func TestAdmissionQueue_Ordering(t *testing.T) {
	q := NewAdmissionQueue(10, nil)

	inserts := []struct {
		requester string
		priority  int
		position  int
	}{
		{"a", 0, 1},
		{"b", 0, 2},
		{"c", 2, 1},
		{"d", 1, 2},
		{"e", 2, 2},
		{"f", 0, 6},
	}
	for _, in := range inserts {
		pos, reason := q.TryEnqueue(item(in.requester, in.priority))
		require.Equal(t, ReasonNone, reason)
		assert.Equal(t, in.position, pos, "position of %s", in.requester)
	}

	assert.Equal(t, []string{"c", "e", "d", "a", "b", "f"}, q.Snapshot().WaitingIDs)

	var order []string
	for {
		it, ok := q.DequeueFront()
		if !ok {
			break
		}
		order = append(order, it.RequesterID)
	}
	assert.Equal(t, []string{"c", "e", "d", "a", "b", "f"}, order)
}

func TestAdmissionQueue_FIFOWithinPriority(t *testing.T) {
	q := NewAdmissionQueue(100, nil)
	for i := 0; i < 50; i++ {
		_, reason := q.TryEnqueue(item(fmt.Sprintf("r%02d", i), 1))
		require.Equal(t, ReasonNone, reason)
	}

	for i := 0; i < 50; i++ {
		it, ok := q.DequeueFront()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("r%02d", i), it.RequesterID)
	}
}

type processingSet map[string]bool

func (p processingSet) IsProcessing(id string) bool { return p[id] }

func TestAdmissionQueue_Rejections(t *testing.T) {
	t.Run("full queue is checked first", func(t *testing.T) {
		q := NewAdmissionQueue(1, processingSet{"a": true})
		_, reason := q.TryEnqueue(item("a", 0))
		assert.Equal(t, ReasonAlreadyProcessing, reason)

		_, reason = q.TryEnqueue(item("b", 0))
		require.Equal(t, ReasonNone, reason)

		// Full wins over duplicate.
		_, reason = q.TryEnqueue(item("b", 0))
		assert.Equal(t, ReasonQueueFull, reason)
	})

	t.Run("duplicate before processing", func(t *testing.T) {
		processing := processingSet{}
		q := NewAdmissionQueue(5, processing)
		_, reason := q.TryEnqueue(item("a", 0))
		require.Equal(t, ReasonNone, reason)

		processing["a"] = true
		_, reason = q.TryEnqueue(item("a", 3))
		assert.Equal(t, ReasonDuplicateInQueue, reason)
		assert.Equal(t, 1, q.Len())
	})
}

func TestAdmissionQueue_RemoveAndPosition(t *testing.T) {
	q := NewAdmissionQueue(5, nil)
	for _, id := range []string{"a", "b", "c"} {
		q.TryEnqueue(item(id, 0))
	}

	pos, ok := q.PositionOf("c")
	require.True(t, ok)
	assert.Equal(t, 3, pos)

	assert.True(t, q.Remove("b"))
	assert.False(t, q.Remove("b"))
	assert.False(t, q.Contains("b"))

	_, ok = q.PositionOf("b")
	assert.False(t, ok)

	pos, _ = q.PositionOf("c")
	assert.Equal(t, 2, pos)

	snap := q.Snapshot()
	assert.Equal(t, QueueSnapshot{Size: 2, Capacity: 5, WaitingIDs: []string{"a", "c"}}, snap)
}

func TestAdmissionQueue_DequeueEmpty(t *testing.T) {
	q := NewAdmissionQueue(1, nil)
	_, ok := q.DequeueFront()
	assert.False(t, ok)
	assert.Equal(t, []string{}, q.Snapshot().WaitingIDs)
}
