package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"streamCastAPI/middleware"
	"streamCastAPI/services"
)

type AccessHandler struct {
	accessService     *services.AccessService
	subscriberService *services.SubscriberService
}

func NewAccessHandler(accessService *services.AccessService, subscriberService *services.SubscriberService) *AccessHandler {
	return &AccessHandler{
		accessService:     accessService,
		subscriberService: subscriberService,
	}
}

type accessCheckRequest struct {
	SubscriberID string `json:"subscriberId,omitempty"`
	ContentID    string `json:"contentId,omitempty"`
	EventID      string `json:"eventId,omitempty"`
}

type accessCheckResponse struct {
	HasAccess bool `json:"hasAccess"`
}

// CheckAccess answers "may this subscriber play this asset right now". The
// subscriber defaults to the authenticated caller; admin tooling may pass
// an explicit subscriberId. A denial is a normal 200 response; the
// frontend renders purchase options, not an error.
func (h *AccessHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req accessCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	assetID := req.ContentID
	if assetID == "" {
		assetID = req.EventID
	}
	if assetID == "" {
		respondWithError(w, http.StatusBadRequest, "contentId or eventId is required")
		return
	}

	subscriberKey := req.SubscriberID
	if subscriberKey == "" {
		sub, ok := h.callerSubscriber(ctx, r)
		if !ok {
			respondWithJSON(w, http.StatusOK, accessCheckResponse{HasAccess: false})
			return
		}
		subscriberKey = sub
	}

	hasAccess := h.accessService.CheckAccess(ctx, subscriberKey, assetID)
	respondWithJSON(w, http.StatusOK, accessCheckResponse{HasAccess: hasAccess})
}

// callerSubscriber maps the authenticated Clerk identity to our subscriber
// id. Missing auth or an unknown subscriber both resolve to "no caller",
// which the access path treats as a denial, not an error.
func (h *AccessHandler) callerSubscriber(ctx context.Context, r *http.Request) (string, bool) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		return "", false
	}
	sub, err := h.subscriberService.GetSubscriberByClerkID(ctx, clerkID)
	if err != nil {
		return "", false
	}
	return sub.ID, true
}
