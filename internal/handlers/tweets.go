package handlers

import (
	"net/http"

	"github.com/vidstream/backend/internal/middleware"
	"github.com/vidstream/backend/internal/service"
)

// TweetHandler serves short text post endpoints.
type TweetHandler struct {
	Tweets TweetService
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.ContentInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, err)
		return
	}
	tweet, err := h.Tweets.Create(ctx, middleware.UserID(ctx), in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, tweet)
}

// ListByUser handles GET /api/v1/tweets/user/{userId}.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := pageRequest(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	page, err := h.Tweets.ListByUser(ctx, r.PathValue("userId"), middleware.UserID(ctx), req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.ContentInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, err)
		return
	}
	tweet, err := h.Tweets.Update(ctx, middleware.UserID(ctx), r.PathValue("tweetId"), in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, tweet)
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tweetID := r.PathValue("tweetId")
	if err := h.Tweets.Delete(ctx, middleware.UserID(ctx), tweetID); err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted", "tweetId": tweetID})
}
