package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"streamCastAPI/internal/types/content"
	"streamCastAPI/internal/types/subscriber"
	"streamCastAPI/internal/types/subscription"
	"streamCastAPI/middleware"
	"streamCastAPI/services"
)

type CheckoutHandler struct {
	checkoutService   *services.CheckoutService
	paypalService     *services.PayPalService
	subscriberService *services.SubscriberService
	contentService    *services.ContentService
}

func NewCheckoutHandler(
	checkoutService *services.CheckoutService,
	paypalService *services.PayPalService,
	subscriberService *services.SubscriberService,
	contentService *services.ContentService,
) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService:   checkoutService,
		paypalService:     paypalService,
		subscriberService: subscriberService,
		contentService:    contentService,
	}
}

// CreateSubscriptionCheckout starts a Stripe checkout for a recurring plan.
func (h *CheckoutHandler) CreateSubscriptionCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	sub, ok := h.caller(ctx, w, r)
	if !ok {
		return
	}

	var req subscription.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PriceID == "" {
		respondWithError(w, http.StatusBadRequest, "priceId is required")
		return
	}

	url, err := h.checkoutService.CreateSubscriptionCheckout(sub, req.PriceID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, subscription.SubscribeResponse{CheckoutURL: url})
}

type assetCheckoutRequest struct {
	AssetID string `json:"assetId"`
}

func (h *CheckoutHandler) CreatePPVCheckout(w http.ResponseWriter, r *http.Request) {
	h.assetCheckout(w, r, h.checkoutService.CreatePPVCheckout)
}

func (h *CheckoutHandler) CreateRentalCheckout(w http.ResponseWriter, r *http.Request) {
	h.assetCheckout(w, r, h.checkoutService.CreateRentalCheckout)
}

func (h *CheckoutHandler) assetCheckout(w http.ResponseWriter, r *http.Request, create func(*subscriber.Subscriber, *content.AccessProfile) (string, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	sub, ok := h.caller(ctx, w, r)
	if !ok {
		return
	}

	var req assetCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssetID == "" {
		respondWithError(w, http.StatusBadRequest, "assetId is required")
		return
	}

	profile, err := h.contentService.GetAssetProfile(ctx, req.AssetID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "asset not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to load asset")
		return
	}

	url, err := create(sub, profile)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, subscription.SubscribeResponse{CheckoutURL: url})
}

// ListPlans joins local plan tiers with the live Stripe price list.
func (h *CheckoutHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	prices, err := h.checkoutService.ListPlanPrices(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list plans")
		return
	}
	respondWithJSON(w, http.StatusOK, prices)
}

type paypalCaptureRequest struct {
	OrderID string `json:"orderId"`
}

// CapturePayPalOrder captures an approved PayPal order. The entitlement
// grant itself lands via the PayPal webhook, so a slow webhook only delays
// access rather than losing it.
func (h *CheckoutHandler) CapturePayPalOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if _, ok := h.caller(ctx, w, r); !ok {
		return
	}

	var req paypalCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		respondWithError(w, http.StatusBadRequest, "orderId is required")
		return
	}

	capture, err := h.paypalService.CaptureOrder(ctx, req.OrderID)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "failed to capture order")
		return
	}
	respondWithJSON(w, http.StatusOK, capture)
}

func (h *CheckoutHandler) caller(ctx context.Context, w http.ResponseWriter, r *http.Request) (*subscriber.Subscriber, bool) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	sub, err := h.subscriberService.GetSubscriberByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "subscriber not found")
		return nil, false
	}
	return sub, true
}
