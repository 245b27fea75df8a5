package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"streamCastAPI/internal/types/notification"
	"streamCastAPI/middleware"
	"streamCastAPI/services"
)

type NotificationHandler struct {
	subscriberService *services.SubscriberService
}

func NewNotificationHandler(subscriberService *services.SubscriberService) *NotificationHandler {
	return &NotificationHandler{subscriberService: subscriberService}
}

// RegisterDevice stores a push token for the caller so go-live and
// video-ready notifications reach their devices.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	sub, err := h.subscriberService.GetSubscriberByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "subscriber not found")
		return
	}

	var req notification.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondWithError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.subscriberService.RegisterDeviceToken(ctx, sub.ID, &req); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to register device")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"registered": true})
}
