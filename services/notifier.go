package services

import (
	"context"
	"log"
	"sync"
	"time"

	"streamCastAPI/internal/types/content"
	"streamCastAPI/internal/types/event"
	"streamCastAPI/internal/types/notification"
)

type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type TokenStore interface {
	ListDeviceTokens(ctx context.Context) ([]notification.DeviceToken, error)
}

type LiveEventStore interface {
	GetLiveEvent(ctx context.Context, id string) (*content.LiveEvent, error)
}

// Notifier turns domain events into push notifications through a small
// worker pool. Push delivery is best effort: a full queue drops the job,
// and a missing provider turns the whole thing into a no-op.
type Notifier struct {
	tokens       TokenStore
	liveEvents   LiveEventStore
	pushProvider PushProvider
	workers      int
	jobQueue     chan *notification.Push
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

func NewNotifier(tokens TokenStore, liveEvents LiveEventStore) *Notifier {
	n := &Notifier{
		tokens:     tokens,
		liveEvents: liveEvents,
		workers:    3,
		jobQueue:   make(chan *notification.Push, 100),
		stopChan:   make(chan struct{}),
	}
	n.startWorkers()
	return n
}

// SetPushProvider injects the real FCM provider from main.go.
func (n *Notifier) SetPushProvider(provider PushProvider) {
	n.pushProvider = provider
}

// Listen consumes live-stream and video-ready events from the emitter until
// the channel closes. Run it in a goroutine; cancel via the emitter's
// unsubscribe func.
func (n *Notifier) Listen(events <-chan event.Event) {
	for ev := range events {
		switch ev.Type {
		case event.TypeLiveActive:
			n.handleLiveActive(ev)
		case event.TypeVideoReady:
			n.handleVideoReady(ev)
		}
	}
}

func (n *Notifier) handleLiveActive(ev event.Event) {
	var payload event.LiveStreamStatusPayload
	if err := ev.DecodeData(&payload); err != nil {
		log.Printf("Notifier: bad live stream payload: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	title := "Live now"
	body := "A live event just started"
	if live, err := n.liveEvents.GetLiveEvent(ctx, payload.EventID); err == nil {
		body = live.Title + " is live now"
	}

	n.enqueue(&notification.Push{
		Title:     title,
		Body:      body,
		Data:      map[string]any{"eventId": payload.EventID, "type": ev.Type},
		CreatedAt: time.Now(),
	})
}

func (n *Notifier) handleVideoReady(ev event.Event) {
	var payload event.VideoStatusPayload
	if err := ev.DecodeData(&payload); err != nil {
		log.Printf("Notifier: bad video status payload: %v", err)
		return
	}

	n.enqueue(&notification.Push{
		Title:     "New video available",
		Body:      "A new video is ready to watch",
		Data:      map[string]any{"contentId": payload.ContentID, "type": ev.Type},
		CreatedAt: time.Now(),
	})
}

func (n *Notifier) enqueue(push *notification.Push) {
	select {
	case n.jobQueue <- push:
	default:
		log.Printf("Notifier: queue full, dropping push %q", push.Title)
	}
}

func (n *Notifier) startWorkers() {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for {
		select {
		case push := <-n.jobQueue:
			n.processPush(push)
		case <-n.stopChan:
			return
		}
	}
}

func (n *Notifier) processPush(push *notification.Push) {
	if n.pushProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := n.tokens.ListDeviceTokens(ctx)
	if err != nil {
		log.Printf("Notifier: failed to list device tokens: %v", err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := n.pushProvider.SendPush(ctx, tokens, push.Title, push.Body, push.Data); err != nil {
		log.Printf("Notifier: push failed: %v", err)
	}
}

func (n *Notifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopChan) })
	n.wg.Wait()
}
