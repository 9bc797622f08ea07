package enrich

import (
	"sync"
	"time"
)

// Event is a job status change pushed to websocket subscribers
type Event struct {
	JobID   string    `json:"job_id"`
	DraftID string    `json:"draft_id"`
	Mode    Mode      `json:"mode"`
	Status  Status    `json:"status"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// EventBus fans job events out to per-draft subscribers. Slow subscribers
// drop events rather than block the runner.
type EventBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewEventBus creates an empty event bus
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers for events on a draft. The returned cancel function
// must be called when the subscriber goes away.
func (b *EventBus) Subscribe(draftID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	if b.subs[draftID] == nil {
		b.subs[draftID] = make(map[chan Event]struct{})
	}
	b.subs[draftID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[draftID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, draftID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the event's draft
func (b *EventBus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.DraftID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
