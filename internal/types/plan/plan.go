package plan

import "time"

type Plan struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	StripePriceID string    `json:"stripePriceId" db:"stripe_price_id"`
	PriceCents    int64     `json:"priceCents" db:"price_cents"`
	Currency      string    `json:"currency" db:"currency"`
	Interval      string    `json:"interval" db:"interval"`
	MaxDevices    int       `json:"maxDevices" db:"max_devices"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}
