package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamCastAPI/internal/types/content"
	"streamCastAPI/internal/types/subscriber"
	"streamCastAPI/services"
)

type stubSubscriberLookup struct {
	subs map[string]*subscriber.Subscriber
}

func (s stubSubscriberLookup) GetSubscriberByID(ctx context.Context, id string) (*subscriber.Subscriber, error) {
	if sub, ok := s.subs[id]; ok {
		return sub, nil
	}
	return nil, services.ErrNotFound
}

func (s stubSubscriberLookup) GetSubscriberByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error) {
	for _, sub := range s.subs {
		if sub.Email == email {
			return sub, nil
		}
	}
	return nil, services.ErrNotFound
}

type stubAssetLookup struct {
	profiles map[string]*content.AccessProfile
}

func (s stubAssetLookup) GetAssetProfile(ctx context.Context, assetID string) (*content.AccessProfile, error) {
	if p, ok := s.profiles[assetID]; ok {
		return p, nil
	}
	return nil, services.ErrNotFound
}

func TestCheckAccessEndpoint(t *testing.T) {
	accessService := services.NewAccessService(
		stubSubscriberLookup{subs: map[string]*subscriber.Subscriber{
			"sub-1": {ID: "sub-1", Email: "viewer@example.com", PurchasedPPV: []string{"paid-1"}},
		}},
		stubAssetLookup{profiles: map[string]*content.AccessProfile{
			"free-1": {ID: "free-1", AccessType: content.AccessFree},
			"paid-1": {ID: "paid-1", AccessType: content.AccessPaidTicket, PPVEnabled: true},
			"paid-2": {ID: "paid-2", AccessType: content.AccessPaidTicket, PPVEnabled: true},
		}},
	)
	h := NewAccessHandler(accessService, nil)

	check := func(t *testing.T, reqBody map[string]string) accessCheckResponse {
		t.Helper()
		raw, err := json.Marshal(reqBody)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/access/check", bytes.NewReader(raw))
		rr := httptest.NewRecorder()
		h.CheckAccess(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp accessCheckResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		return resp
	}

	t.Run("free content", func(t *testing.T) {
		resp := check(t, map[string]string{"subscriberId": "sub-1", "contentId": "free-1"})
		assert.True(t, resp.HasAccess)
	})

	t.Run("purchased ppv", func(t *testing.T) {
		resp := check(t, map[string]string{"subscriberId": "sub-1", "contentId": "paid-1"})
		assert.True(t, resp.HasAccess)
	})

	t.Run("unpurchased ppv denies", func(t *testing.T) {
		resp := check(t, map[string]string{"subscriberId": "sub-1", "eventId": "paid-2"})
		assert.False(t, resp.HasAccess)
	})

	t.Run("unknown subscriber denies", func(t *testing.T) {
		resp := check(t, map[string]string{"subscriberId": "ghost", "contentId": "free-1"})
		assert.False(t, resp.HasAccess)
	})

	t.Run("anonymous caller denies without error", func(t *testing.T) {
		resp := check(t, map[string]string{"contentId": "paid-1"})
		assert.False(t, resp.HasAccess)
	})

	t.Run("missing asset id is a 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/access/check", bytes.NewReader([]byte(`{"subscriberId":"sub-1"}`)))
		rr := httptest.NewRecorder()
		h.CheckAccess(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
