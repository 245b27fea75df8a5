package subscriber

import (
	"time"

	"streamCastAPI/internal/types/session"
)

type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusActive   SubscriptionStatus = "active"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

type Subscriber struct {
	ID                    string             `json:"id" db:"id"`
	ClerkID               string             `json:"clerkId" db:"clerk_id"`
	Email                 string             `json:"email" db:"email"`
	Name                  string             `json:"name" db:"name"`
	SubscriptionStatus    SubscriptionStatus `json:"subscriptionStatus" db:"subscription_status"`
	ActivePlans           []string           `json:"activePlans" db:"active_plans"`
	PurchasedPPV          []string           `json:"purchasedPPV" db:"purchased_ppv"`
	HasManualSubscription bool               `json:"hasManualSubscription" db:"has_manual_subscription"`
	Rentals               []Rental           `json:"rentals,omitempty"`
	Sessions              []session.Entry    `json:"activeSessions,omitempty"`
	CreatedAt             time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time          `json:"updatedAt" db:"updated_at"`
}

// Rental is a time-bounded purchase grant. Validity is exclusive at the
// boundary: the grant holds iff now < ExpiresAt.
type Rental struct {
	ContentID string    `json:"contentId" db:"content_id"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// HasActiveStatus reports whether the billing status alone can satisfy a
// subscription-gated asset.
func (s *Subscriber) HasActiveStatus() bool {
	return s.SubscriptionStatus == StatusActive || s.SubscriptionStatus == StatusTrialing
}

type CreateSubscriberRequest struct {
	ClerkID string `json:"clerkId"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

type UpdateSubscriberRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}
