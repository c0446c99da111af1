// Package events carries notification activity to the presentation layer.
package events

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"turnero-desk/internal/model"
)

// Stream separates what the desk received from what the user tapped.
type Stream string

const (
	StreamReceived Stream = "received"
	StreamTapped   Stream = "tapped"
)

// Event types.
const (
	TypeTurns         = "turns"
	TypeNewTurn       = "new_turn"
	TypeSound         = "sound"
	TypeToast         = "toast"
	TypeSystem        = "system"
	TypeSystemDismiss = "system_dismiss"
	TypeTapped        = "tapped"
)

// Event is one message on a stream.
type Event struct {
	Stream Stream      `json:"stream"`
	Type   string      `json:"type"`
	TurnID int64       `json:"turn_id,omitempty"`
	Turn   *model.Turn `json:"turn,omitempty"`
	Data   any         `json:"data,omitempty"`
	At     time.Time   `json:"at"`
}

type subscriber struct {
	ch   chan Event
	once sync.Once
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[Stream]map[uint64]*subscriber
	nextID uint64
	buffer int
	clock  clockwork.Clock
}

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int, clock clockwork.Clock) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		subs:   make(map[Stream]map[uint64]*subscriber),
		buffer: buffer,
		clock:  clock,
	}
}

// Subscribe returns the events of one stream and a cancel func. Cancel
// closes the channel and is safe to call more than once.
func (h *Hub) Subscribe(stream Stream) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	sub := &subscriber{ch: make(chan Event, h.buffer)}
	if h.subs[stream] == nil {
		h.subs[stream] = make(map[uint64]*subscriber)
	}
	h.subs[stream][id] = sub

	cancel := func() {
		sub.once.Do(func() {
			h.mu.Lock()
			delete(h.subs[stream], id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers e to every subscriber of e.Stream.
func (h *Hub) Publish(e Event) {
	if e.Stream == "" {
		e.Stream = StreamReceived
	}
	if e.At.IsZero() {
		e.At = h.clock.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.subs[e.Stream] {
		select {
		case sub.ch <- e:
		default:
			log.Warn().Str("stream", string(e.Stream)).Str("type", e.Type).Uint64("subscriber", id).Msg("subscriber buffer full; dropping event")
		}
	}
}

// Subscribers returns how many subscribers a stream has.
func (h *Hub) Subscribers(stream Stream) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[stream])
}
