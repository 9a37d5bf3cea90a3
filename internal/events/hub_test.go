package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	h := NewHub(nil)
	a := h.Subscribe(4)
	b := h.Subscribe(4)
	require.Equal(t, 2, h.Len())

	h.Publish(Event{Type: Dispatched, ID: "1", Tool: "ping"})

	for _, s := range []*Subscription{a, b} {
		ev := <-s.C()
		assert.Equal(t, Dispatched, ev.Type)
		assert.Equal(t, "1", ev.ID)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe(1)

	h.Publish(Event{Type: Completed, ID: "1"})
	h.Publish(Event{Type: Completed, ID: "2"})

	assert.Equal(t, uint64(1), h.Dropped())
	assert.Equal(t, "1", (<-s.C()).ID)
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe(1)

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Len())

	_, ok := <-s.C()
	assert.False(t, ok)

	// Publishing after close must not panic.
	h.Publish(Event{Type: Failed})
}

func TestHubClose(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe(1)

	h.Close()
	_, ok := <-s.C()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())

	// Closing the subscription afterwards is a no-op.
	s.Close()
}

func TestNilHub(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(Event{Type: TimedOut}) })
}
