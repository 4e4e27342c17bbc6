// Package bus provides the subscription channel the pipeline publishes
// lifecycle notifications on. Hosts (dashboards, notification dispatchers)
// subscribe explicitly; there is no ambient global emitter.
package bus

import (
	"log"
	"sync"
	"time"
)

// EventKind identifies a pipeline lifecycle notification
type EventKind string

const (
	KindNewGroup               EventKind = "new-group"
	KindGroupUpdated           EventKind = "group-updated"
	KindAlertSuppressed        EventKind = "alert-suppressed"
	KindGroupExpired           EventKind = "group-expired"
	KindPatternDetected        EventKind = "pattern-detected"
	KindEscalationStarted      EventKind = "escalation-started"
	KindEscalationAdvanced     EventKind = "escalation-advanced"
	KindEscalationAcknowledged EventKind = "escalation-acknowledged"
	KindEscalationExhausted    EventKind = "escalation-exhausted"
)

// Event is a single lifecycle notification delivered to subscribers
type Event struct {
	Kind      EventKind   `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Bus fans out events to subscriber channels. Publishing never blocks the
// hot path: a subscriber that falls behind loses events.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// New creates an event bus
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe or bus close.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish delivers an event to all subscribers without blocking
func (b *Bus) Publish(kind EventKind, payload interface{}) {
	ev := Event{Kind: kind, Timestamp: time.Now(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("Bus subscriber %d is full, dropping %s event", id, kind)
		}
	}
}

// Close shuts down the bus and closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
