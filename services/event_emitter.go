package services

import (
	"log"
	"sync"
	"time"

	"streamCastAPI/internal/types/event"
)

// clientBufferSize bounds each connected client's delivery channel. A full
// buffer means the client is too slow; that delivery is dropped rather than
// blocking the emitter or other clients.
const clientBufferSize = 256

// StreamClient is one connected SSE or WebSocket consumer.
type StreamClient struct {
	Send chan event.Event
}

type listener struct {
	types map[string]bool
	ch    chan event.Event
}

// EventEmitter is the process-wide publish point for state-change
// notifications. It is constructed in main and injected wherever events are
// emitted or consumed; there is no package-level singleton. Delivery is
// fire-and-forget: no queue, no persistence, no retry. If nobody is
// listening the event is dropped.
type EventEmitter struct {
	mu        sync.RWMutex
	clients   map[*StreamClient]bool
	listeners map[*listener]bool
	now       func() time.Time
}

func NewEventEmitter() *EventEmitter {
	return &EventEmitter{
		clients:   make(map[*StreamClient]bool),
		listeners: make(map[*listener]bool),
		now:       time.Now,
	}
}

// Register adds a transport client to the broadcast list. The caller must
// Unregister when its connection closes.
func (e *EventEmitter) Register() *StreamClient {
	c := &StreamClient{Send: make(chan event.Event, clientBufferSize)}
	e.mu.Lock()
	e.clients[c] = true
	e.mu.Unlock()
	streamClients.Inc()
	return c
}

func (e *EventEmitter) Unregister(c *StreamClient) {
	e.mu.Lock()
	if _, ok := e.clients[c]; ok {
		delete(e.clients, c)
		close(c.Send)
		streamClients.Dec()
	}
	e.mu.Unlock()
}

// Subscribe registers an in-process listener for the given event types (all
// types when none are named). The returned cancel func is safe to call more
// than once.
func (e *EventEmitter) Subscribe(types ...string) (<-chan event.Event, func()) {
	l := &listener{ch: make(chan event.Event, clientBufferSize)}
	if len(types) > 0 {
		l.types = make(map[string]bool, len(types))
		for _, t := range types {
			l.types[t] = true
		}
	}

	e.mu.Lock()
	e.listeners[l] = true
	e.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, l)
			close(l.ch)
			e.mu.Unlock()
		})
	}
	return l.ch, cancel
}

// Emit stamps and fans out an event to every registered transport client
// and matching in-process listener. Non-blocking per receiver: a full
// buffer drops that one delivery without affecting the rest.
func (e *EventEmitter) Emit(eventType string, data any) {
	ev := event.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: e.now(),
	}
	eventsEmittedTotal.WithLabelValues(eventType).Inc()

	e.mu.RLock()
	defer e.mu.RUnlock()

	for c := range e.clients {
		select {
		case c.Send <- ev:
		default:
			eventsDroppedTotal.Inc()
			log.Printf("Dropping %s event for slow stream client", eventType)
		}
	}

	for l := range e.listeners {
		if l.types != nil && !l.types[eventType] {
			continue
		}
		select {
		case l.ch <- ev:
		default:
			eventsDroppedTotal.Inc()
		}
	}
}

// ClientCount reports connected transport clients (used by /health and tests).
func (e *EventEmitter) ClientCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients)
}
