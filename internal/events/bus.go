package events

import (
	"sync"
	"time"
)

// Type names a domain event.
type Type string

const (
	AlertCreated         Type = "alert.created"
	AlertArchived        Type = "alert.archived"
	AlertRestored        Type = "alert.restored"
	AlertLinked          Type = "alert.linked"
	AlertUnlinked        Type = "alert.unlinked"
	PlanDraftSaved       Type = "plan.draft_saved"
	PlanScheduled        Type = "plan.scheduled"
	MaintenanceCompleted Type = "maintenance.completed"
	StorageReset         Type = "storage.reset"
)

// Event is published after the change it describes has been stored.
type Event struct {
	Type     Type        `json:"type"`
	CarID    string      `json:"carId,omitempty"`
	EntityID string      `json:"entityId,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
	At       time.Time   `json:"at"`
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(Event)

// Publisher is what services depend on.
type Publisher interface {
	Publish(Event)
}

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every subscriber. A zero At is set to now.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Nop discards events.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(Event) {}
