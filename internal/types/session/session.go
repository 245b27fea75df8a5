package session

import "time"

// Entry is one tracked device session. A subscriber holds at most one entry
// per DeviceID; re-tracking refreshes LastActive and moves the entry to the
// most-recent position.
type Entry struct {
	DeviceID   string    `json:"deviceId" db:"device_id"`
	IP         string    `json:"ip,omitempty" db:"ip"`
	UserAgent  string    `json:"userAgent,omitempty" db:"user_agent"`
	LastActive time.Time `json:"lastActive" db:"last_active"`
}

type TrackRequest struct {
	DeviceID  string `json:"deviceId"`
	UserAgent string `json:"userAgent,omitempty"`
}

type TrackResponse struct {
	DeviceID       string `json:"deviceId"`
	ActiveSessions int    `json:"activeSessions"`
	MaxDevices     int    `json:"maxDevices"`
}

type LimitResponse struct {
	ReachedLimit   bool `json:"reachedLimit"`
	ActiveSessions int  `json:"activeSessions"`
	MaxDevices     int  `json:"maxDevices"`
}
