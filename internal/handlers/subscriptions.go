package handlers

import (
	"net/http"

	"github.com/vidstream/backend/internal/middleware"
)

// SubscriptionHandler serves channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionService
}

// Toggle handles POST /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.Subscriptions.Toggle(ctx, middleware.UserID(ctx), r.PathValue("channelId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, status)
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := pageRequest(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	page, err := h.Subscriptions.Subscribers(ctx, r.PathValue("channelId"), req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// SubscribedChannels handles GET /api/v1/subscriptions/u/{subscriberId}.
func (h SubscriptionHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := pageRequest(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	page, err := h.Subscriptions.SubscribedChannels(ctx, r.PathValue("subscriberId"), req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}
