package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(8)
	first := b.Subscribe()
	second := b.Subscribe()
	defer b.Unsubscribe(first)
	defer b.Unsubscribe(second)

	b.Publish(Event{Type: EventDecision, AccountID: "acct-1", Token: "ETH", Timestamp: time.Now()})

	for _, ch := range []chan Event{first, second} {
		select {
		case e := <-ch:
			assert.Equal(t, EventDecision, e.Type)
			assert.Equal(t, "ETH", e.Token)
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestBroadcaster_DropsForSlowSubscribers(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// second publish overflows the buffer and must not block
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Type: EventTrade})
		b.Publish(Event{Type: EventCircuitOpen})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	require.Len(t, ch, 1)
	assert.Equal(t, EventTrade, (<-ch).Type)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(8)
	ch := b.Subscribe()

	b.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	// publishing after unsubscribe reaches nobody and must not panic
	b.Publish(Event{Type: EventPositionClosed})

	// double unsubscribe is a no-op
	b.Unsubscribe(ch)
}
