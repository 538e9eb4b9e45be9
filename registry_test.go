package genqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessingRegistry(t *testing.T) {
	r := NewProcessingRegistry()

	r.Begin(item("b", 0))
	r.Begin(item("a", 0))
	assert.True(t, r.IsProcessing("a"))
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"a", "b"}, r.IDs())

	got, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "item-a", got.ID)

	assert.True(t, r.End("a"))
	assert.False(t, r.End("a"), "ending twice is a no-op")
	assert.False(t, r.End("unknown"))
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.IsProcessing("b"))
}

func TestProcessingRegistry_DoubleBeginPanics(t *testing.T) {
	r := NewProcessingRegistry()
	r.Begin(item("a", 0))

	assert.Panics(t, func() { r.Begin(item("a", 0)) })
}
