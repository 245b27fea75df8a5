package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"streamCastAPI/internal/types/content"
	"streamCastAPI/middleware"
	"streamCastAPI/services"

	"github.com/gorilla/mux"
)

type ContentHandler struct {
	contentService    *services.ContentService
	accessService     *services.AccessService
	subscriberService *services.SubscriberService
}

func NewContentHandler(contentService *services.ContentService, accessService *services.AccessService, subscriberService *services.SubscriberService) *ContentHandler {
	return &ContentHandler{
		contentService:    contentService,
		accessService:     accessService,
		subscriberService: subscriberService,
	}
}

func (h *ContentHandler) ListContent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.contentService.ListContent(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list content")
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]
	item, err := h.contentService.GetContent(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "content not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get content")
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *ContentHandler) ListLiveEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := h.contentService.ListLiveEvents(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list live events")
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

func (h *ContentHandler) GetLiveEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]
	event, err := h.contentService.GetLiveEvent(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "live event not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get live event")
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

// GetPlayback gates the playback id behind an access check: denied callers
// get hasAccess=false and no playback id, never an error.
func (h *ContentHandler) GetPlayback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]
	item, err := h.contentService.GetContent(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "content not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get content")
		return
	}

	resp := content.PlaybackResponse{}
	if key, ok := h.callerSubscriberKey(ctx, r); ok {
		resp.HasAccess = h.accessService.CheckAccess(ctx, key, item.ID)
	} else if item.AccessType == content.AccessFree {
		// Free content plays without an account.
		resp.HasAccess = true
	}

	if resp.HasAccess && item.Status == content.VideoReady {
		resp.PlaybackID = item.MuxPlaybackID
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// GetPurchaseOptions is the denial-path surface: which pathways the caller
// can still buy for this asset.
func (h *ContentHandler) GetPurchaseOptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]
	opts, err := h.accessService.PurchaseOptions(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "asset not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to get purchase options")
		return
	}
	respondWithJSON(w, http.StatusOK, opts)
}

func (h *ContentHandler) callerSubscriberKey(ctx context.Context, r *http.Request) (string, bool) {
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
