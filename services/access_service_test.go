package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamCastAPI/internal/types/content"
	"streamCastAPI/internal/types/subscriber"
)

type fakeSubscriberStore struct {
	byID    map[string]*subscriber.Subscriber
	byEmail map[string]*subscriber.Subscriber
	err     error
}

func (f *fakeSubscriberStore) GetSubscriberByID(ctx context.Context, id string) (*subscriber.Subscriber, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.byID[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (f *fakeSubscriberStore) GetSubscriberByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.byEmail[email]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

type fakeAssetStore struct {
	profiles map[string]*content.AccessProfile
	err      error
}

func (f *fakeAssetStore) GetAssetProfile(ctx context.Context, assetID string) (*content.AccessProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.profiles[assetID]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func newTestAccessService(subs *fakeSubscriberStore, assets *fakeAssetStore, now time.Time) *AccessService {
	svc := NewAccessService(subs, assets)
	svc.now = func() time.Time { return now }
	return svc
}

func baseSubscriber() *subscriber.Subscriber {
	return &subscriber.Subscriber{
		ID:                 "sub-1",
		Email:              "viewer@example.com",
		SubscriptionStatus: subscriber.StatusNone,
		ActivePlans:        []string{},
		PurchasedPPV:       []string{},
	}
}

func TestCheckAccessEmptyInputs(t *testing.T) {
	svc := newTestAccessService(&fakeSubscriberStore{}, &fakeAssetStore{}, time.Now())
	ctx := context.Background()

	assert.False(t, svc.CheckAccess(ctx, "", "asset-1"))
	assert.False(t, svc.CheckAccess(ctx, "sub-1", ""))
	assert.False(t, svc.CheckAccess(ctx, "", ""))
}

func TestCheckAccessUnknownSubscriber(t *testing.T) {
	assets := &fakeAssetStore{profiles: map[string]*content.AccessProfile{
		"asset-1": {ID: "asset-1", AccessType: content.AccessFree},
	}}
	svc := newTestAccessService(&fakeSubscriberStore{}, assets, time.Now())

	// Even a free asset denies when the subscriber key resolves to nobody;
	// the subscriber is looked up first.
	assert.False(t, svc.CheckAccess(context.Background(), "ghost", "asset-1"))
}

func TestCheckAccessFreeAsset(t *testing.T) {
	sub := baseSubscriber()
	subs := &fakeSubscriberStore{byID: map[string]*subscriber.Subscriber{"sub-1": sub}}
	assets := &fakeAssetStore{profiles: map[string]*content.AccessProfile{
		"asset-1": {ID: "asset-1", AccessType: content.AccessFree},
	}}
	svc := newTestAccessService(subs, assets, time.Now())

	assert.True(t, svc.CheckAccess(context.Background(), "sub-1", "asset-1"))
}

func TestCheckAccessByEmail(t *testing.T) {
	sub := baseSubscriber()
	subs := &fakeSubscriberStore{byEmail: map[string]*subscriber.Subscriber{"viewer@example.com": sub}}
	assets := &fakeAssetStore{profiles: map[string]*content.AccessProfile{
		"asset-1": {ID: "asset-1", AccessType: content.AccessFree},
	}}
	svc := newTestAccessService(subs, assets, time.Now())

	assert.True(t, svc.CheckAccess(context.Background(), "viewer@example.com", "asset-1"))
}

func TestCheckAccessManualOverride(t *testing.T) {
	sub := baseSubscriber()
	sub.HasManualSubscription = true
	subs := &fakeSubscriberStore{byID: map[string]*subscriber.Subscriber{"sub-1": sub}}
	assets := &fakeAssetStore{profiles: map[string]*content.AccessProfile{
		"asset-1": {ID: "asset-1", AccessType: content.AccessSubscription, RequiredPlans: []string{"premium"}},
	}}
	svc := newTestAccessService(subs, assets, time.Now())

	// The override bypasses status and plan requirements entirely.
	assert.True(t, svc.CheckAccess(context.Background(), "sub-1", "asset-1"))
}

func TestCheckAccessSubscriptionPlans(t *testing.T) {
	assets := &fakeAssetStore{profiles: map[string]*content.AccessProfile{
		"gated":   {ID: "gated", AccessType: content.AccessSubscription, RequiredPlans: []string{"premium", "max"}},
		"anyplan": {ID: "anyplan", AccessType: content.AccessSubscription},
	}}

	cases := []struct {
		name   string
		status subscriber.SubscriptionStatus
		plans  []string
		asset  string
		want   bool
	}{
		{"active with matching plan", subscriber.StatusActive, []string{"premium"}, "gated", true},
		{"trialing with matching plan", subscriber.StatusTrialing, []string{"max"}, "gated", true},
		{"active with wrong plan", subscriber.StatusActive, []string{"basic"}, "gated", false},
		{"active with no plans on ungated asset", subscriber.StatusActive, nil, "anyplan", true},
		{"past_due with matching plan", subscriber.StatusPastDue, []string{"premium"}, "gated", false},
		{"canceled with matching plan", subscriber.StatusCanceled, []string{"premium"}, "gated", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := baseSubscriber()
			sub.SubscriptionStatus = tc.status
			sub.ActivePlans = tc.plans
			subs := &fakeSubscriberStore{byID: map[string]*subscriber.Subscriber{"sub-1": sub}}
			svc := newTestAccessService(subs, assets, time.Now())

			assert.Equal(t, tc.want, svc.CheckAccess(context.Background(), "sub-1", tc.asset))
		})
	}
}

func TestCheckAccessPPV(t *testing.T) {
	sub := baseSubscriber()
	sub.PurchasedPPV = []string{"ppv-asset"}
	subs := &fakeSubscriberStore{byID: map[string]*subscriber.Subscriber{"sub-1": sub}}
	assets := &fakeAssetStore{profiles: map[string]*content.AccessProfile{
		"ppv-asset": {ID: "ppv-asset", AccessType: content.AccessPaidTicket, PPVEnabled: true},
		"other":     {ID: "other", AccessType: content.AccessPaidTicket, PPVEnabled: true},
	}}
	svc := newTestAccessService(subs, assets, time.Now())

	assert.True(t, svc.CheckAccess(context.Background(), "sub-1", "ppv-asset"))
	assert.False(t, svc.CheckAccess(context.Background(), "sub-1", "other"))
}

func TestCheckAccessRentalBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(time.Hour)

	sub := baseSubscriber()
	sub.Rentals = []subscriber.Rental{{ContentID: "rented", ExpiresAt: expiry}}
	subs := &fakeSubscriberStore{byID: map[string]*subscriber.Subscriber{"sub-1": sub}}
	assets := &fakeAssetStore{profiles: map[string]*content.AccessProfile{
		"rented": {ID: "rented", AccessType: content.AccessSubscription, RentalEnabled: true},
	}}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well before expiry", now, true},
		{"one second before expiry", expiry.Add(-time.Second), true},
		{"exactly at expiry", expiry, false},
		{"one second after expiry", expiry.Add(time.Second), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestAccessService(subs, assets, tc.now)
			assert.Equal(t, tc.want, svc.CheckAccess(context.Background(), "sub-1", "rented"))
		})
	}
}

func TestCheckAccessFailsClosedOnStoreError(t *testing.T) {
	boom := errors.New("connection reset")

	// Subscriber store failure.
	svc := newTestAccessService(&fakeSubscriberStore{err: boom}, &fakeAssetStore{}, time.Now())
	assert.False(t, svc.CheckAccess(context.Background(), "sub-1", "asset-1"))

	// Asset store failure after a successful subscriber lookup.
	sub := baseSubscriber()
	sub.HasManualSubscription = true
	subs := &fakeSubscriberStore{byID: map[string]*subscriber.Subscriber{"sub-1": sub}}
	svc = newTestAccessService(subs, &fakeAssetStore{err: boom}, time.Now())
	assert.False(t, svc.CheckAccess(context.Background(), "sub-1", "asset-1"))
}

func TestPurchaseOptions(t *testing.T) {
	assets := &fakeAssetStore{profiles: map[string]*content.AccessProfile{
		"free": {ID: "free", AccessType: content.AccessFree},
		"paid": {
			ID:                  "paid",
			AccessType:          content.AccessSubscription,
			RequiredPlans:       []string{"premium"},
			PPVEnabled:          true,
			PPVPriceCents:       1999,
			RentalEnabled:       true,
			RentalPriceCents:    499,
			RentalDurationHours: 48,
		},
	}}
	svc := newTestAccessService(&fakeSubscriberStore{}, assets, time.Now())
	ctx := context.Background()

	free, err := svc.PurchaseOptions(ctx, "free")
	require.NoError(t, err)
	assert.False(t, free.SubscriptionRequired)
	assert.False(t, free.PPVAvailable)
	assert.False(t, free.RentalAvailable)

	paid, err := svc.PurchaseOptions(ctx, "paid")
	require.NoError(t, err)
	assert.True(t, paid.SubscriptionRequired)
	assert.Equal(t, []string{"premium"}, paid.RequiredPlans)
	assert.True(t, paid.PPVAvailable)
	assert.Equal(t, int64(1999), paid.PPVPriceCents)
	assert.True(t, paid.RentalAvailable)
	assert.Equal(t, int64(499), paid.RentalPriceCents)
	assert.Equal(t, 48, paid.RentalDurationHours)

	_, err = svc.PurchaseOptions(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
