package client

import (
	"context"
	"log"
	"sync"
	"time"

	"streamCastAPI/internal/types/event"
)

const (
	defaultDebounce     = 5 * time.Second
	defaultPollInterval = 60 * time.Second
)

// ReconcileFunc refreshes the local view of one entity from the API. It must
// be idempotent: a refresh that observes no change is a no-op, so duplicate
// or stale events are harmless.
type ReconcileFunc func(ctx context.Context, entityID string)

// StatusWatcher turns bursty status events into debounced reconcile calls.
// Each entity id holds one pending timer; another event for the same entity
// resets that timer instead of stacking a second reconcile. A polling ticker
// backstops the event feed, so a missed event only delays convergence until
// the next poll.
type StatusWatcher struct {
	bus          *Bus
	reconcile    ReconcileFunc
	poll         func(ctx context.Context)
	debounce     time.Duration
	pollInterval time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	unsubs  []func()
	stopped bool
}

// NewStatusWatcher wires a watcher to a bus. poll may be nil to disable the
// interval backstop; debounce and pollInterval fall back to defaults when
// zero.
func NewStatusWatcher(bus *Bus, reconcile ReconcileFunc, poll func(ctx context.Context), debounce, pollInterval time.Duration) *StatusWatcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &StatusWatcher{
		bus:          bus,
		reconcile:    reconcile,
		poll:         poll,
		debounce:     debounce,
		pollInterval: pollInterval,
		timers:       make(map[string]*time.Timer),
	}
}

// Start subscribes to the status event types and launches the polling
// backstop. ctx cancellation stops the poller; call Stop to also drop the
// subscriptions and pending timers.
func (w *StatusWatcher) Start(ctx context.Context) {
	for _, t := range []string{
		event.TypeVideoCreated,
		event.TypeVideoUpdated,
		event.TypeVideoReady,
		event.TypeVideoErrored,
		event.TypeLiveUpdated,
		event.TypeLiveActive,
		event.TypeLiveIdle,
		event.TypeEntitlement,
	} {
		w.unsubs = append(w.unsubs, w.bus.Subscribe(t, func(ev event.Event) {
			w.handle(ctx, ev)
		}))
	}

	if w.poll != nil {
		go w.runPoller(ctx)
	}
}

func (w *StatusWatcher) handle(ctx context.Context, ev event.Event) {
	id := entityID(ev)
	if id == "" {
		return
	}
	w.Schedule(ctx, id)
}

// Schedule arms (or resets) the debounce timer for an entity. N events
// inside one debounce window produce exactly one reconcile call.
func (w *StatusWatcher) Schedule(ctx context.Context, entityID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if t, ok := w.timers[entityID]; ok {
		t.Reset(w.debounce)
		return
	}

	w.timers[entityID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, entityID)
		stopped := w.stopped
		w.mu.Unlock()
		if stopped || ctx.Err() != nil {
			return
		}
		w.reconcile(ctx, entityID)
	})
}

func (w *StatusWatcher) runPoller(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// Stop drops the bus subscriptions and cancels every pending timer. Safe to
// call more than once.
func (w *StatusWatcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
	unsubs := w.unsubs
	w.unsubs = nil
	w.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// PendingCount reports entities with an armed debounce timer (used by tests).
func (w *StatusWatcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

// entityID extracts the debounce key from a status event payload.
func entityID(ev event.Event) string {
	var payload struct {
		ContentID    string `json:"contentId"`
		EventID      string `json:"eventId"`
		SubscriberID string `json:"subscriberId"`
	}
	if err := ev.DecodeData(&payload); err != nil {
		log.Printf("Could not decode %s payload: %v", ev.Type, err)
		return ""
	}
	switch {
	case payload.ContentID != "":
		return payload.ContentID
	case payload.EventID != "":
		return payload.EventID
	default:
		return payload.SubscriberID
	}
}
