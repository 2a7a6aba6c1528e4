package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-reservation/internal/queue"
)

func recv(t *testing.T, c <-chan queue.ChangeEvent) queue.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-c:
		require.True(t, ok, "channel closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return queue.ChangeEvent{}
	}
}

func TestBroadcastFansOutToAllSubscribers(t *testing.T) {
	h := NewHub()
	defer h.Close()

	a := h.Subscribe(queue.TopicSlots)
	b := h.Subscribe(queue.TopicSlots)

	ev := queue.NewChangeEvent(queue.TopicSlots, queue.ActionUpdated, 1, 1)
	h.Broadcast(ev)

	assert.Equal(t, ev.ID, recv(t, a.C).ID)
	assert.Equal(t, ev.ID, recv(t, b.C).ID)
}

func TestTopicFiltering(t *testing.T) {
	h := NewHub()
	defer h.Close()

	slotsOnly := h.Subscribe(queue.TopicSlots)
	everything := h.Subscribe()

	h.Broadcast(queue.NewChangeEvent(queue.TopicBookings, queue.ActionCreated, 5, 1))
	h.Broadcast(queue.NewChangeEvent(queue.TopicSlots, queue.ActionUpdated, 1, 1))

	// The filtered subscriber sees only the slots event.
	got := recv(t, slotsOnly.C)
	assert.Equal(t, queue.TopicSlots, got.Topic)
	select {
	case extra := <-slotsOnly.C:
		t.Fatalf("unexpected event on filtered subscriber: %+v", extra)
	default:
	}

	assert.Equal(t, queue.TopicBookings, recv(t, everything.C).Topic)
	assert.Equal(t, queue.TopicSlots, recv(t, everything.C).Topic)
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	h := NewHub()
	defer h.Close()

	slow := h.Subscribe(queue.TopicSlots)
	// Never read: fill the buffer and push one over.
	for i := 0; i <= subscriberBuffer; i++ {
		h.Broadcast(queue.NewChangeEvent(queue.TopicSlots, queue.ActionUpdated, uint64(i), 1))
	}

	assert.Equal(t, 0, h.Len(), "stalled subscriber should be evicted")

	// Drain the buffered events; the channel must then report closed,
	// which is the client's cue to reconnect and resync.
	for i := 0; i < subscriberBuffer; i++ {
		<-slow.C
	}
	_, ok := <-slow.C
	assert.False(t, ok)
}

func TestSubscriberCloseDetaches(t *testing.T) {
	h := NewHub()
	defer h.Close()

	s := h.Subscribe()
	require.Equal(t, 1, h.Len())

	s.Close()
	assert.Equal(t, 0, h.Len())
	_, ok := <-s.C
	assert.False(t, ok)

	// Closing again is a no-op.
	s.Close()
}

func TestHubCloseEvictsAllAndRejectsNew(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe(queue.TopicBookings)

	h.Close()
	_, ok := <-a.C
	assert.False(t, ok)
	_, ok = <-b.C
	assert.False(t, ok)

	late := h.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok, "subscriptions after Close are immediately closed")
	assert.Equal(t, 0, h.Len())
}
