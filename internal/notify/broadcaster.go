// Package notify fans trading events out to subscribers. Emission is
// fire-and-forget: a slow or absent consumer never blocks the tick loop.
package notify

import (
	"sync"
	"time"

	"github.com/vadiminshakov/papertrader/internal/domain"
)

// EventType tags what happened.
type EventType string

const (
	EventDecision       EventType = "decision"
	EventTrade          EventType = "trade"
	EventPositionClosed EventType = "position_closed"
	EventCircuitOpen    EventType = "circuit_open"
)

// Event is one notification payload. Monetary values are stringified decimals
// so downstream consumers never touch floats.
type Event struct {
	Type      EventType               `json:"type"`
	AccountID string                  `json:"account_id"`
	Token     string                  `json:"token,omitempty"`
	Decision  *domain.TradingDecision `json:"decision,omitempty"`
	Trade     *domain.ExecutedTrade   `json:"trade,omitempty"`
	Detail    string                  `json:"detail,omitempty"`
	Timestamp time.Time               `json:"ts"`
}

// Broadcaster fans out events to all subscribers via buffered channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping it for slow readers.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
