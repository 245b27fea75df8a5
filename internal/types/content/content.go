package content

import "time"

type AccessType string

const (
	AccessFree         AccessType = "free"
	AccessSubscription AccessType = "subscription"
	AccessPaidTicket   AccessType = "paid_ticket"
)

type VideoStatus string

const (
	VideoPreparing VideoStatus = "preparing"
	VideoReady     VideoStatus = "ready"
	VideoErrored   VideoStatus = "errored"
)

type StreamStatus string

const (
	StreamIdle         StreamStatus = "idle"
	StreamActive       StreamStatus = "active"
	StreamDisconnected StreamStatus = "disconnected"
)

type Content struct {
	ID                  string      `json:"id" db:"id"`
	Title               string      `json:"title" db:"title"`
	Description         string      `json:"description" db:"description"`
	AccessType          AccessType  `json:"accessType" db:"access_type"`
	RequiredPlans       []string    `json:"requiredPlans" db:"required_plans"`
	PPVEnabled          bool        `json:"ppvEnabled" db:"ppv_enabled"`
	PPVPriceCents       int64       `json:"ppvPriceCents" db:"ppv_price_cents"`
	RentalEnabled       bool        `json:"rentalEnabled" db:"rental_enabled"`
	RentalPriceCents    int64       `json:"rentalPriceCents" db:"rental_price_cents"`
	RentalDurationHours int         `json:"rentalDurationHours" db:"rental_duration_hours"`
	MuxAssetID          string      `json:"muxAssetId,omitempty" db:"mux_asset_id"`
	MuxPlaybackID       string      `json:"muxPlaybackId,omitempty" db:"mux_playback_id"`
	Status              VideoStatus `json:"status" db:"status"`
	CreatedAt           time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time   `json:"updatedAt" db:"updated_at"`
}

type LiveEvent struct {
	ID              string       `json:"id" db:"id"`
	Title           string       `json:"title" db:"title"`
	Description     string       `json:"description" db:"description"`
	AccessType      AccessType   `json:"accessType" db:"access_type"`
	RequiredPlans   []string     `json:"requiredPlans" db:"required_plans"`
	PPVEnabled      bool         `json:"ppvEnabled" db:"ppv_enabled"`
	PPVPriceCents   int64        `json:"ppvPriceCents" db:"ppv_price_cents"`
	MuxLiveStreamID string       `json:"muxLiveStreamId,omitempty" db:"mux_live_stream_id"`
	StreamStatus    StreamStatus `json:"streamStatus" db:"stream_status"`
	StartsAt        *time.Time   `json:"startsAt,omitempty" db:"starts_at"`
	CreatedAt       time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time    `json:"updatedAt" db:"updated_at"`
}

// AccessProfile is the slice of an asset the access evaluator needs. Content
// and live events both reduce to it, so the evaluator stays agnostic of
// which table the asset came from.
type AccessProfile struct {
	ID                  string     `json:"id"`
	AccessType          AccessType `json:"accessType"`
	RequiredPlans       []string   `json:"requiredPlans"`
	PPVEnabled          bool       `json:"ppvEnabled"`
	PPVPriceCents       int64      `json:"ppvPriceCents"`
	RentalEnabled       bool       `json:"rentalEnabled"`
	RentalPriceCents    int64      `json:"rentalPriceCents"`
	RentalDurationHours int        `json:"rentalDurationHours"`
}

func (p *AccessProfile) IsFree() bool {
	return p.AccessType == AccessFree
}

func (c *Content) AccessProfile() *AccessProfile {
	return &AccessProfile{
		ID:                  c.ID,
		AccessType:          c.AccessType,
		RequiredPlans:       c.RequiredPlans,
		PPVEnabled:          c.PPVEnabled,
		PPVPriceCents:       c.PPVPriceCents,
		RentalEnabled:       c.RentalEnabled,
		RentalPriceCents:    c.RentalPriceCents,
		RentalDurationHours: c.RentalDurationHours,
	}
}

func (e *LiveEvent) AccessProfile() *AccessProfile {
	return &AccessProfile{
		ID:            e.ID,
		AccessType:    e.AccessType,
		RequiredPlans: e.RequiredPlans,
		PPVEnabled:    e.PPVEnabled,
		PPVPriceCents: e.PPVPriceCents,
	}
}

// PurchaseOptions is what the frontend renders when an access check denies:
// the pathways the viewer can still buy, never an error message.
type PurchaseOptions struct {
	AssetID              string   `json:"assetId"`
	SubscriptionRequired bool     `json:"subscriptionRequired"`
	RequiredPlans        []string `json:"requiredPlans,omitempty"`
	PPVAvailable         bool     `json:"ppvAvailable"`
	PPVPriceCents        int64    `json:"ppvPriceCents,omitempty"`
	RentalAvailable      bool     `json:"rentalAvailable"`
	RentalPriceCents     int64    `json:"rentalPriceCents,omitempty"`
	RentalDurationHours  int      `json:"rentalDurationHours,omitempty"`
}

type PlaybackResponse struct {
	HasAccess  bool   `json:"hasAccess"`
	PlaybackID string `json:"playbackId,omitempty"`
}
