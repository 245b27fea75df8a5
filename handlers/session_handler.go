package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"streamCastAPI/internal/types/session"
	"streamCastAPI/internal/types/subscriber"
	"streamCastAPI/middleware"
	"streamCastAPI/services"
	"streamCastAPI/utils"

	"github.com/gorilla/mux"
)

type SessionHandler struct {
	sessionService    *services.SessionService
	subscriberService *services.SubscriberService
}

func NewSessionHandler(sessionService *services.SessionService, subscriberService *services.SubscriberService) *SessionHandler {
	return &SessionHandler{
		sessionService:    sessionService,
		subscriberService: subscriberService,
	}
}

// TrackSession registers activity for the caller's device. Clients send
// their own deviceId when they have one persisted; otherwise one is derived
// server-side from the user agent.
func (h *SessionHandler) TrackSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sub, ok := h.caller(ctx, w, r)
	if !ok {
		return
	}

	var req session.TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}
	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = utils.DeviceID(userAgent)
	}

	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	updated, err := h.sessionService.TrackSession(ctx, sub.Email, deviceID, ip, userAgent)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to track session")
		return
	}
	if updated == nil {
		respondWithError(w, http.StatusNotFound, "subscriber not found")
		return
	}

	respondWithJSON(w, http.StatusOK, session.TrackResponse{
		DeviceID:       deviceID,
		ActiveSessions: len(updated.Sessions),
		MaxDevices:     h.sessionService.ResolveMaxDevices(ctx, updated),
	})
}

func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sub, ok := h.caller(ctx, w, r)
	if !ok {
		return
	}

	entries, err := h.sessionService.ListSessions(ctx, sub.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// GetDeviceLimit lets the player check admission before starting playback.
func (h *SessionHandler) GetDeviceLimit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sub, ok := h.caller(ctx, w, r)
	if !ok {
		return
	}

	entries, err := h.sessionService.ListSessions(ctx, sub.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to check device limit")
		return
	}

	respondWithJSON(w, http.StatusOK, session.LimitResponse{
		ReachedLimit:   h.sessionService.HasReachedDeviceLimit(ctx, sub.ID),
		ActiveSessions: len(entries),
		MaxDevices:     h.sessionService.ResolveMaxDevices(ctx, sub),
	})
}

func (h *SessionHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sub, ok := h.caller(ctx, w, r)
	if !ok {
		return
	}

	deviceID := mux.Vars(r)["deviceId"]
	if err := h.sessionService.RevokeSession(ctx, sub.ID, deviceID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (h *SessionHandler) caller(ctx context.Context, w http.ResponseWriter, r *http.Request) (*subscriber.Subscriber, bool) {
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
