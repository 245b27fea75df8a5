// Package client implements the consumer side of the event feed: an
// in-process event bus, an SSE stream reader that republishes onto it, and a
// debounced status watcher that reconciles local state against the API.
package client

import (
	"log"
	"sync"

	"streamCastAPI/internal/types/event"
)

// Handler receives one event. Handlers run synchronously on the emitting
// goroutine, in registration order.
type Handler func(ev event.Event)

type busEntry struct {
	id      int
	handler Handler
}

// Bus is a synchronous subscribe/emit registry. Unlike the server-side
// emitter there are no channels or buffers; a handler sees every event
// emitted after it subscribed, exactly once per emit.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]busEntry
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]busEntry)}
}

// Subscribe registers a handler for one event type. The returned unsubscribe
// func is safe to call more than once.
func (b *Bus) Subscribe(eventType string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], busEntry{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			entries := b.subs[eventType]
			for i, e := range entries {
				if e.id == id {
					b.subs[eventType] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
			if len(b.subs[eventType]) == 0 {
				delete(b.subs, eventType)
			}
		})
	}
}

// Emit dispatches to every handler subscribed to the event's type, in
// registration order. A panicking handler is logged and skipped; the rest
// still run.
func (b *Bus) Emit(ev event.Event) {
	b.mu.Lock()
	entries := make([]busEntry, len(b.subs[ev.Type]))
	copy(entries, b.subs[ev.Type])
	b.mu.Unlock()

	for _, e := range entries {
		b.dispatch(e, ev)
	}
}

func (b *Bus) dispatch(e busEntry, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Event handler for %s panicked: %v", ev.Type, r)
		}
	}()
	e.handler(ev)
}

// SubscriberCount reports handlers registered for a type (used by tests).
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[eventType])
}
