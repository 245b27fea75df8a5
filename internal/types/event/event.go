package event

import (
	"encoding/json"
	"time"
)

// Domain event names carried over the SSE / WebSocket feed. The transport
// stays schema-less JSON; consumers decode Data into the payload struct for
// the type they subscribed to.
const (
	TypeConnected    = "connected"
	TypePing         = "ping"
	TypeVideoCreated = "video:created"
	TypeVideoUpdated = "video:updated"
	TypeVideoReady   = "video:status:ready"
	TypeVideoErrored = "video:status:errored"
	TypeLiveUpdated  = "livestream:updated"
	TypeLiveActive   = "livestream:status:active"
	TypeLiveIdle     = "livestream:status:idle"
	TypeEntitlement  = "entitlement:updated"
)

// Event is ephemeral: it exists only in transit from the emitter to
// connected clients. No ordering or delivery guarantee; consumers must
// tolerate duplicates.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// DecodeData round-trips Data through JSON into v. Payloads arrive as
// map[string]any from the wire, so this is the one decode path for both
// in-process and transported events.
func (e Event) DecodeData(v any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type VideoStatusPayload struct {
	ContentID  string `json:"contentId"`
	Status     string `json:"status"`
	PlaybackID string `json:"playbackId,omitempty"`
}

type LiveStreamStatusPayload struct {
	EventID      string `json:"eventId"`
	StreamStatus string `json:"streamStatus"`
}

type EntitlementPayload struct {
	SubscriberID string `json:"subscriberId"`
	Reason       string `json:"reason"`
}

type PingPayload struct {
	Timestamp time.Time `json:"timestamp"`
}
