package services

import (
	"context"
	"fmt"
	"os"

	"streamCastAPI/internal/types/content"
	"streamCastAPI/internal/types/plan"
	"streamCastAPI/internal/types/subscriber"

	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/price"
	stripesub "github.com/stripe/stripe-go/v76/subscription"
)

// Metadata keys carried on checkout sessions so the webhook handler can
// apply the right grant when payment completes.
const (
	MetaSubscriberID  = "subscriber_id"
	MetaAssetID       = "asset_id"
	MetaGrantType     = "grant_type"
	MetaRentalHours   = "rental_hours"
	GrantSubscription = "subscription"
	GrantPPV          = "ppv"
	GrantRental       = "rental"
)

type PlanStore interface {
	ListPlans(ctx context.Context) ([]plan.Plan, error)
}

// CheckoutService creates Stripe checkout sessions for the three purchase
// pathways and exposes the provider-price view for the plans endpoint.
type CheckoutService struct {
	plans      PlanStore
	successURL string
	cancelURL  string
}

func NewCheckoutService(plans PlanStore) *CheckoutService {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	return &CheckoutService{
		plans:      plans,
		successURL: os.Getenv("CHECKOUT_SUCCESS_URL"),
		cancelURL:  os.Getenv("CHECKOUT_CANCEL_URL"),
	}
}

// CreateSubscriptionCheckout starts a recurring-plan checkout for a price id.
func (s *CheckoutService) CreateSubscriptionCheckout(sub *subscriber.Subscriber, priceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(sub.Email),
		SuccessURL:    stripe.String(s.successURL),
		CancelURL:     stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata(MetaSubscriberID, sub.ID)
	params.AddMetadata(MetaGrantType, GrantSubscription)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create subscription checkout: %w", err)
	}
	return sess.URL, nil
}

// CreatePPVCheckout starts a one-time payment granting permanent access to
// the asset.
func (s *CheckoutService) CreatePPVCheckout(sub *subscriber.Subscriber, asset *content.AccessProfile) (string, error) {
	if !asset.PPVEnabled && asset.AccessType != content.AccessPaidTicket {
		return "", fmt.Errorf("asset %s is not purchasable as PPV", asset.ID)
	}

	params := s.oneTimeParams(sub, asset.ID, asset.PPVPriceCents, "Pay-per-view access")
	params.AddMetadata(MetaGrantType, GrantPPV)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create PPV checkout: %w", err)
	}
	return sess.URL, nil
}

// CreateRentalCheckout starts a one-time payment granting time-bounded
// access; the rental clock starts when the webhook lands, not at checkout.
func (s *CheckoutService) CreateRentalCheckout(sub *subscriber.Subscriber, asset *content.AccessProfile) (string, error) {
	if !asset.RentalEnabled {
		return "", fmt.Errorf("asset %s is not rentable", asset.ID)
	}

	params := s.oneTimeParams(sub, asset.ID, asset.RentalPriceCents, "Rental access")
	params.AddMetadata(MetaGrantType, GrantRental)
	params.AddMetadata(MetaRentalHours, fmt.Sprintf("%d", asset.RentalDurationHours))

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create rental checkout: %w", err)
	}
	return sess.URL, nil
}

func (s *CheckoutService) oneTimeParams(sub *subscriber.Subscriber, assetID string, amountCents int64, description string) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(sub.Email),
		SuccessURL:    stripe.String(s.successURL),
		CancelURL:     stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
			},
		},
	}
	params.AddMetadata(MetaSubscriberID, sub.ID)
	params.AddMetadata(MetaAssetID, assetID)
	return params
}

// FetchSubscription pulls the latest subscription state from Stripe. The
// invoice webhook only carries the subscription id, so the fresh period end
// has to be fetched rather than parsed out of invoice lines.
func (s *CheckoutService) FetchSubscription(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := stripesub.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stripe subscription %s: %w", subscriptionID, err)
	}
	return sub, nil
}

type PlanPrice struct {
	Plan          plan.Plan `json:"plan"`
	StripeAmount  int64     `json:"stripeAmountCents"`
	StripeActive  bool      `json:"stripeActive"`
	StripeMissing bool      `json:"stripeMissing,omitempty"`
}

// ListPlanPrices joins the local plan tiers with the live Stripe price list
// so the admin UI can spot drift between the two.
func (s *CheckoutService) ListPlanPrices(ctx context.Context) ([]PlanPrice, error) {
	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		return nil, err
	}

	stripePrices := map[string]*stripe.Price{}
	iter := price.List(&stripe.PriceListParams{Active: stripe.Bool(true)})
	for iter.Next() {
		p := iter.Price()
		stripePrices[p.ID] = p
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stripe prices: %w", err)
	}

	out := make([]PlanPrice, 0, len(plans))
	for _, p := range plans {
		pp := PlanPrice{Plan: p}
		if sp, ok := stripePrices[p.StripePriceID]; ok {
			pp.StripeAmount = sp.UnitAmount
			pp.StripeActive = sp.Active
		} else {
			pp.StripeMissing = true
		}
		out = append(out, pp)
	}
	return out, nil
}
