package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"streamCastAPI/internal/types/event"
	"streamCastAPI/services"

	"github.com/gorilla/websocket"
)

const (
	ssePingInterval = 25 * time.Second

	// WebSocket feed timing, same values the write/read pumps use.
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type EventsHandler struct {
	emitter *services.EventEmitter
}

func NewEventsHandler(emitter *services.EventEmitter) *EventsHandler {
	return &EventsHandler{emitter: emitter}
}

// StreamEvents is the SSE endpoint. Each connected browser holds one open
// streaming response; the server sends a `connected` event immediately,
// `ping` heartbeats, and one named event per domain event. Delivery is best
// effort: a disconnected or slow client just misses events, and the
// polling backstop on the client converges state later.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.emitter.Register()
	defer h.emitter.Unregister(client)

	writeSSE(w, event.Event{
		Type:      event.TypeConnected,
		Data:      map[string]string{"status": "connected"},
		Timestamp: time.Now(),
	})
	flusher.Flush()

	ticker := time.NewTicker(ssePingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-ticker.C:
			writeSSE(w, event.Event{
				Type:      event.TypePing,
				Data:      event.PingPayload{Timestamp: time.Now()},
				Timestamp: time.Now(),
			})
			flusher.Flush()

		case ev, ok := <-client.Send:
			if !ok {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				// Write failure means the client went away; the deferred
				// Unregister removes it from the broadcast list.
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", ev.Type, err)
		return nil
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

// StreamEventsWS mirrors the SSE feed over a WebSocket for consumers that
// keep one long-lived socket open anyway (the admin dashboard).
func (h *EventsHandler) StreamEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Could not upgrade connection: %v", err)
		return
	}

	client := h.emitter.Register()

	go h.wsWritePump(conn, client)
	go h.wsReadPump(conn, client)
}

func (h *EventsHandler) wsWritePump(conn *websocket.Conn, client *services.StreamClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-client.Send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsReadPump discards inbound frames; the feed is one-way. Its job is
// detecting the close so the client gets deregistered.
func (h *EventsHandler) wsReadPump(conn *websocket.Conn, client *services.StreamClient) {
	defer func() {
		h.emitter.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type emitRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EmitEvent is a dev tool: POST {event, data} injects an event into the
// emitter so frontend event handling can be exercised without triggering
// real webhooks. Protected by the dev-tools secret header.
func (h *EventsHandler) EmitEvent(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
		respondWithError(w, http.StatusBadRequest, "event is required")
		return
	}

	var data any
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &data); err != nil {
			respondWithError(w, http.StatusBadRequest, "data must be valid JSON")
			return
		}
	}

	h.emitter.Emit(req.Event, data)
	respondWithJSON(w, http.StatusOK, map[string]bool{"emitted": true})
}
