package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"streamCastAPI/internal/types/content"
	"streamCastAPI/internal/types/subscriber"
)

// ErrNotFound is returned by store lookups when no matching record exists.
// Callers treat it as a normal negative-path outcome, not a failure.
var ErrNotFound = errors.New("record not found")

type SubscriberStore interface {
	GetSubscriberByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error)
	GetSubscriberByID(ctx context.Context, id string) (*subscriber.Subscriber, error)
}

type AssetStore interface {
	// GetAssetProfile resolves an id against content first, then live events.
	GetAssetProfile(ctx context.Context, assetID string) (*content.AccessProfile, error)
}

// AccessService decides whether a subscriber may play an asset right now.
// It is a pure read path: no caching, no side effects, safe under arbitrary
// request concurrency. Store errors always resolve to a denial.
type AccessService struct {
	subscribers SubscriberStore
	assets      AssetStore
	now         func() time.Time
}

func NewAccessService(subscribers SubscriberStore, assets AssetStore) *AccessService {
	return &AccessService{
		subscribers: subscribers,
		assets:      assets,
		now:         time.Now,
	}
}

// CheckAccess evaluates the access pathways in order, short-circuiting on
// the first that grants: free asset, manual override, active subscription
// matching the required plans, PPV purchase, unexpired rental. The
// subscriberKey may be an email or a subscriber id. Fails closed: any
// lookup error denies.
func (s *AccessService) CheckAccess(ctx context.Context, subscriberKey, assetID string) bool {
	if subscriberKey == "" || assetID == "" {
		accessChecksTotal.WithLabelValues("denied").Inc()
		return false
	}

	sub, err := s.lookupSubscriber(ctx, subscriberKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			accessChecksTotal.WithLabelValues("denied").Inc()
			return false
		}
		log.Printf("Access check: subscriber lookup failed for %q: %v", subscriberKey, err)
		accessChecksTotal.WithLabelValues("error").Inc()
		return false
	}

	asset, err := s.assets.GetAssetProfile(ctx, assetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			accessChecksTotal.WithLabelValues("denied").Inc()
			return false
		}
		log.Printf("Access check: asset lookup failed for %q: %v", assetID, err)
		accessChecksTotal.WithLabelValues("error").Inc()
		return false
	}

	granted := s.evaluate(sub, asset)
	if granted {
		accessChecksTotal.WithLabelValues("granted").Inc()
	} else {
		accessChecksTotal.WithLabelValues("denied").Inc()
	}
	return granted
}

func (s *AccessService) evaluate(sub *subscriber.Subscriber, asset *content.AccessProfile) bool {
	if asset.IsFree() {
		return true
	}

	if sub.HasManualSubscription {
		return true
	}

	if sub.HasActiveStatus() && plansSatisfy(sub.ActivePlans, asset.RequiredPlans) {
		return true
	}

	for _, id := range sub.PurchasedPPV {
		if id == asset.ID {
			return true
		}
	}

	now := s.now()
	for _, r := range sub.Rentals {
		// Exclusive boundary: a rental is already expired at exactly ExpiresAt.
		if r.ContentID == asset.ID && now.Before(r.ExpiresAt) {
			return true
		}
	}

	return false
}

// plansSatisfy is true when the asset gates on no particular plan, or the
// subscriber holds at least one of the required tiers.
func plansSatisfy(activePlans, requiredPlans []string) bool {
	if len(requiredPlans) == 0 {
		return true
	}
	for _, required := range requiredPlans {
		for _, active := range activePlans {
			if active == required {
				return true
			}
		}
	}
	return false
}

// PurchaseOptions reports which pathways remain purchasable for an asset.
// The frontend renders these when an access check denies, instead of an
// error message.
func (s *AccessService) PurchaseOptions(ctx context.Context, assetID string) (*content.PurchaseOptions, error) {
	asset, err := s.assets.GetAssetProfile(ctx, assetID)
	if err != nil {
		return nil, err
	}

	opts := &content.PurchaseOptions{AssetID: asset.ID}
	if asset.IsFree() {
		return opts, nil
	}

	opts.SubscriptionRequired = asset.AccessType == content.AccessSubscription
	opts.RequiredPlans = asset.RequiredPlans
	if asset.PPVEnabled || asset.AccessType == content.AccessPaidTicket {
		opts.PPVAvailable = true
		opts.PPVPriceCents = asset.PPVPriceCents
	}
	if asset.RentalEnabled {
		opts.RentalAvailable = true
		opts.RentalPriceCents = asset.RentalPriceCents
		opts.RentalDurationHours = asset.RentalDurationHours
	}
	return opts, nil
}

func (s *AccessService) lookupSubscriber(ctx context.Context, key string) (*subscriber.Subscriber, error) {
	if strings.Contains(key, "@") {
		return s.subscribers.GetSubscriberByEmail(ctx, key)
	}
	return s.subscribers.GetSubscriberByID(ctx, key)
}
