package subscription

import "time"

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPayPal Provider = "paypal"
)

// Subscription mirrors the billing provider's view of a recurring plan so
// webhook handlers can upsert by provider subscription id without a
// subscriber lookup round-trip.
type Subscription struct {
	ID                     string    `json:"id" db:"id"`
	SubscriberID           string    `json:"subscriberId" db:"subscriber_id"`
	Provider               Provider  `json:"provider" db:"provider"`
	ProviderCustomerID     string    `json:"providerCustomerId" db:"provider_customer_id"`
	ProviderSubscriptionID string    `json:"providerSubscriptionId" db:"provider_subscription_id"`
	PriceID                string    `json:"priceId" db:"price_id"`
	PlanID                 string    `json:"planId" db:"plan_id"`
	Status                 string    `json:"status" db:"status"`
	CurrentPeriodEnd       time.Time `json:"currentPeriodEnd" db:"current_period_end"`
	CreatedAt              time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt              time.Time `json:"updatedAt" db:"updated_at"`
}

type SubscribeRequest struct {
	PriceID string `json:"priceId"`
}

type SubscribeResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}
