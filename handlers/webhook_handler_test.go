package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"streamCastAPI/internal/types/content"
	"streamCastAPI/internal/types/event"
	"streamCastAPI/internal/types/plan"
	"streamCastAPI/internal/types/subscriber"
	"streamCastAPI/internal/types/subscription"
	"streamCastAPI/services"
)

type fakeSubscriberWebhookStore struct {
	created       []*subscriber.CreateSubscriberRequest
	updated       map[string]*subscriber.UpdateSubscriberRequest
	deleted       []string
	ppvGrants     [][2]string
	rentalGrants  []string
	upserted      []*subscription.Subscription
	statusUpdates []*subscription.Subscription
}

func newFakeSubscriberWebhookStore() *fakeSubscriberWebhookStore {
	return &fakeSubscriberWebhookStore{updated: map[string]*subscriber.UpdateSubscriberRequest{}}
}

func (f *fakeSubscriberWebhookStore) CreateSubscriber(ctx context.Context, req *subscriber.CreateSubscriberRequest) (*subscriber.Subscriber, error) {
	f.created = append(f.created, req)
	return &subscriber.Subscriber{ID: "sub-1", ClerkID: req.ClerkID, Email: req.Email}, nil
}

func (f *fakeSubscriberWebhookStore) UpdateSubscriberByClerkID(ctx context.Context, clerkID string, req *subscriber.UpdateSubscriberRequest) error {
	f.updated[clerkID] = req
	return nil
}

func (f *fakeSubscriberWebhookStore) DeleteSubscriberByClerkID(ctx context.Context, clerkID string) error {
	f.deleted = append(f.deleted, clerkID)
	return nil
}

func (f *fakeSubscriberWebhookStore) GrantPPV(ctx context.Context, subscriberID, assetID string) error {
	f.ppvGrants = append(f.ppvGrants, [2]string{subscriberID, assetID})
	return nil
}

func (f *fakeSubscriberWebhookStore) GrantRental(ctx context.Context, subscriberID, contentID string, durationHours int) error {
	f.rentalGrants = append(f.rentalGrants, fmt.Sprintf("%s/%s/%d", subscriberID, contentID, durationHours))
	return nil
}

func (f *fakeSubscriberWebhookStore) UpsertSubscription(ctx context.Context, sub *subscription.Subscription) error {
	f.upserted = append(f.upserted, sub)
	return nil
}

func (f *fakeSubscriberWebhookStore) UpdateSubscriptionStatus(ctx context.Context, sub *subscription.Subscription) error {
	sub.SubscriberID = "sub-1"
	f.statusUpdates = append(f.statusUpdates, sub)
	return nil
}

func (f *fakeSubscriberWebhookStore) GetPlanByPriceID(ctx context.Context, priceID string) (*plan.Plan, error) {
	return nil, services.ErrNotFound
}

type fakeContentWebhookStore struct {
	videoUpdates  []string
	streamUpdates []string
	missing       bool
}

func (f *fakeContentWebhookStore) UpdateContentStatusByAssetID(ctx context.Context, muxAssetID string, status content.VideoStatus, playbackID string) (*content.Content, error) {
	if f.missing {
		return nil, services.ErrNotFound
	}
	f.videoUpdates = append(f.videoUpdates, fmt.Sprintf("%s=%s", muxAssetID, status))
	return &content.Content{ID: "content-1", MuxAssetID: muxAssetID, MuxPlaybackID: playbackID, Status: status}, nil
}

func (f *fakeContentWebhookStore) UpdateLiveStreamStatus(ctx context.Context, muxLiveStreamID string, status content.StreamStatus) (*content.LiveEvent, error) {
	if f.missing {
		return nil, services.ErrNotFound
	}
	f.streamUpdates = append(f.streamUpdates, fmt.Sprintf("%s=%s", muxLiveStreamID, status))
	return &content.LiveEvent{ID: "live-1", MuxLiveStreamID: muxLiveStreamID, StreamStatus: status}, nil
}

type fakeStripeFetcher struct{}

func (fakeStripeFetcher) FetchSubscription(subscriptionID string) (*stripe.Subscription, error) {
	return &stripe.Subscription{
		ID:               subscriptionID,
		Status:           stripe.SubscriptionStatusActive,
		Customer:         &stripe.Customer{ID: "cus_1"},
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).Unix(),
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_1"}},
			},
		},
	}, nil
}

type fakePayPalVerifier struct{ valid bool }

func (f fakePayPalVerifier) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	return f.valid, nil
}

func newTestWebhookHandler(subs *fakeSubscriberWebhookStore, contents *fakeContentWebhookStore, paypalValid bool) (*WebhookHandler, *services.EventEmitter) {
	emitter := services.NewEventEmitter()
	h := NewWebhookHandler(subs, contents, fakeStripeFetcher{}, fakePayPalVerifier{valid: paypalValid}, emitter)
	return h, emitter
}

func muxSign(t *testing.T, secret string, body []byte) string {
	t.Helper()
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(body)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestMuxWebhookSignature(t *testing.T) {
	t.Setenv("MUX_WEBHOOK_SECRET", "mux-secret")

	body := []byte(`{"type":"video.asset.ready","data":{"id":"asset-1","playback_ids":[{"id":"pb-1"}]}}`)

	t.Run("valid signature processes the event", func(t *testing.T) {
		subs := newFakeSubscriberWebhookStore()
		contents := &fakeContentWebhookStore{}
		h, _ := newTestWebhookHandler(subs, contents, true)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/mux", bytes.NewReader(body))
		req.Header.Set("Mux-Signature", muxSign(t, "mux-secret", body))
		rr := httptest.NewRecorder()

		h.HandleMuxWebhook(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"asset-1=ready"}, contents.videoUpdates)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		subs := newFakeSubscriberWebhookStore()
		contents := &fakeContentWebhookStore{}
		h, _ := newTestWebhookHandler(subs, contents, true)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/mux", bytes.NewReader(body))
		req.Header.Set("Mux-Signature", muxSign(t, "wrong-secret", body))
		rr := httptest.NewRecorder()

		h.HandleMuxWebhook(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, contents.videoUpdates)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		subs := newFakeSubscriberWebhookStore()
		contents := &fakeContentWebhookStore{}
		h, _ := newTestWebhookHandler(subs, contents, true)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/mux", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		h.HandleMuxWebhook(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestMuxWebhookEmitsEvents(t *testing.T) {
	t.Setenv("MUX_WEBHOOK_SECRET", "")

	subs := newFakeSubscriberWebhookStore()
	contents := &fakeContentWebhookStore{}
	h, emitter := newTestWebhookHandler(subs, contents, true)

	client := emitter.Register()
	defer emitter.Unregister(client)

	body := []byte(`{"type":"video.asset.ready","data":{"id":"asset-1","playback_ids":[{"id":"pb-1"}]}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mux", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandleMuxWebhook(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	// The status transition emits the named event plus the generic update.
	require.Len(t, client.Send, 2)
	first := <-client.Send
	second := <-client.Send
	assert.Equal(t, event.TypeVideoReady, first.Type)
	assert.Equal(t, event.TypeVideoUpdated, second.Type)

	var payload event.VideoStatusPayload
	require.NoError(t, first.DecodeData(&payload))
	assert.Equal(t, "content-1", payload.ContentID)
	assert.Equal(t, "ready", payload.Status)
	assert.Equal(t, "pb-1", payload.PlaybackID)
}

func TestMuxWebhookLiveStream(t *testing.T) {
	t.Setenv("MUX_WEBHOOK_SECRET", "")

	subs := newFakeSubscriberWebhookStore()
	contents := &fakeContentWebhookStore{}
	h, emitter := newTestWebhookHandler(subs, contents, true)

	client := emitter.Register()
	defer emitter.Unregister(client)

	body := []byte(`{"type":"video.live_stream.active","data":{"id":"stream-1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mux", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandleMuxWebhook(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, []string{"stream-1=active"}, contents.streamUpdates)
	require.Len(t, client.Send, 2)
	first := <-client.Send
	second := <-client.Send
	assert.Equal(t, event.TypeLiveActive, first.Type)
	assert.Equal(t, event.TypeLiveUpdated, second.Type)
}

func TestMuxWebhookUnknownAssetIsSkipped(t *testing.T) {
	t.Setenv("MUX_WEBHOOK_SECRET", "")

	subs := newFakeSubscriberWebhookStore()
	contents := &fakeContentWebhookStore{missing: true}
	h, _ := newTestWebhookHandler(subs, contents, true)

	body := []byte(`{"type":"video.asset.ready","data":{"id":"somebody-elses-asset"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mux", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandleMuxWebhook(rr, req)

	// Unknown assets must not trigger provider retries.
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestClerkWebhookUserLifecycle(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "")

	subs := newFakeSubscriberWebhookStore()
	h, _ := newTestWebhookHandler(subs, &fakeContentWebhookStore{}, true)

	t.Run("user.created", func(t *testing.T) {
		body := []byte(`{"type":"user.created","data":{"id":"user_abc","first_name":"Ada","last_name":"Lovelace","email_addresses":[{"email_address":"ada@example.com"}]}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		h.HandleClerkWebhook(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, subs.created, 1)
		assert.Equal(t, "user_abc", subs.created[0].ClerkID)
		assert.Equal(t, "ada@example.com", subs.created[0].Email)
		assert.Equal(t, "Ada Lovelace", subs.created[0].Name)
	})

	t.Run("user.deleted", func(t *testing.T) {
		body := []byte(`{"type":"user.deleted","data":{"id":"user_abc"}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		h.HandleClerkWebhook(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"user_abc"}, subs.deleted)
	})
}

func TestClerkWebhookRejectsBadSignature(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "clerk-secret")

	subs := newFakeSubscriberWebhookStore()
	h, _ := newTestWebhookHandler(subs, &fakeContentWebhookStore{}, true)

	body := []byte(`{"type":"user.created","data":{"id":"user_abc"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", "v1,deadbeef")
	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, subs.created)
}

func TestPayPalWebhookCaptureGrants(t *testing.T) {
	subs := newFakeSubscriberWebhookStore()
	h, emitter := newTestWebhookHandler(subs, &fakeContentWebhookStore{}, true)

	client := emitter.Register()
	defer emitter.Unregister(client)

	t.Run("ppv grant", func(t *testing.T) {
		body := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"cap-1","status":"COMPLETED","custom_id":"ppv:sub-1:asset-9"}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		h.HandlePayPalWebhook(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, subs.ppvGrants, 1)
		assert.Equal(t, [2]string{"sub-1", "asset-9"}, subs.ppvGrants[0])

		ev := <-client.Send
		assert.Equal(t, event.TypeEntitlement, ev.Type)
	})

	t.Run("rental grant", func(t *testing.T) {
		body := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"cap-2","status":"COMPLETED","custom_id":"rental:sub-1:asset-9:48"}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		h.HandlePayPalWebhook(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"sub-1/asset-9/48"}, subs.rentalGrants)
	})

	t.Run("garbled custom id fails", func(t *testing.T) {
		body := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"cap-3","custom_id":"what"}}`)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		h.HandlePayPalWebhook(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestPayPalWebhookInvalidSignature(t *testing.T) {
	subs := newFakeSubscriberWebhookStore()
	h, _ := newTestWebhookHandler(subs, &fakeContentWebhookStore{}, false)

	body := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"custom_id":"ppv:sub-1:asset-9"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandlePayPalWebhook(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, subs.ppvGrants)
}

func TestPayPalWebhookSubscriptionLifecycle(t *testing.T) {
	subs := newFakeSubscriberWebhookStore()
	h, _ := newTestWebhookHandler(subs, &fakeContentWebhookStore{}, true)

	body := []byte(`{"event_type":"BILLING.SUBSCRIPTION.ACTIVATED","resource":{"id":"I-123","status":"ACTIVE","custom_id":"sub-1:premium"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.HandlePayPalWebhook(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, subs.upserted, 1)
	up := subs.upserted[0]
	assert.Equal(t, "sub-1", up.SubscriberID)
	assert.Equal(t, subscription.ProviderPayPal, up.Provider)
	assert.Equal(t, "I-123", up.ProviderSubscriptionID)
	assert.Equal(t, "premium", up.PlanID)
	assert.Equal(t, "ACTIVE", up.Status)

	body = []byte(`{"event_type":"BILLING.SUBSCRIPTION.CANCELLED","resource":{"id":"I-123"}}`)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/paypal", bytes.NewReader(body))
	rr = httptest.NewRecorder()
	h.HandlePayPalWebhook(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, subs.statusUpdates, 1)
	assert.Equal(t, "CANCELLED", subs.statusUpdates[0].Status)
}
