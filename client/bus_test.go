package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"streamCastAPI/internal/types/event"
)

func TestBusDispatchesInRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe("video:updated", func(ev event.Event) { order = append(order, 1) })
	bus.Subscribe("video:updated", func(ev event.Event) { order = append(order, 2) })
	bus.Subscribe("video:updated", func(ev event.Event) { order = append(order, 3) })

	bus.Emit(event.Event{Type: "video:updated"})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBusOnlyMatchingTypeRuns(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.Subscribe("video:updated", func(ev event.Event) { calls++ })

	bus.Emit(event.Event{Type: "livestream:updated"})
	assert.Zero(t, calls)

	bus.Emit(event.Event{Type: "video:updated"})
	assert.Equal(t, 1, calls)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsub := bus.Subscribe("video:updated", func(ev event.Event) { calls++ })
	bus.Subscribe("video:updated", func(ev event.Event) { calls += 10 })

	bus.Emit(event.Event{Type: "video:updated"})
	assert.Equal(t, 11, calls)

	unsub()
	bus.Emit(event.Event{Type: "video:updated"})
	assert.Equal(t, 21, calls)

	// Calling unsubscribe again must not remove the other handler.
	unsub()
	bus.Emit(event.Event{Type: "video:updated"})
	assert.Equal(t, 31, calls)
	assert.Equal(t, 1, bus.SubscriberCount("video:updated"))
}

func TestBusPanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus()

	var reached bool
	bus.Subscribe("video:updated", func(ev event.Event) { panic("handler bug") })
	bus.Subscribe("video:updated", func(ev event.Event) { reached = true })

	assert.NotPanics(t, func() {
		bus.Emit(event.Event{Type: "video:updated"})
	})
	assert.True(t, reached)
}

func TestBusHandlerCanUnsubscribeDuringEmit(t *testing.T) {
	bus := NewBus()

	var unsub func()
	calls := 0
	unsub = bus.Subscribe("video:updated", func(ev event.Event) {
		calls++
		unsub()
	})

	// Emitting twice: the handler runs once, removes itself, and is gone.
	bus.Emit(event.Event{Type: "video:updated"})
	bus.Emit(event.Event{Type: "video:updated"})
	assert.Equal(t, 1, calls)
	assert.Zero(t, bus.SubscriberCount("video:updated"))
}
