package handlers

import (
	"net/http"

	"github.com/vidstream/backend/internal/middleware"
	"github.com/vidstream/backend/internal/models"
)

// LikeHandler serves like toggles and the liked videos listing.
type LikeHandler struct {
	Likes LikeService
}

// ToggleVideo handles POST /api/v1/likes/toggle/v/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.TargetVideo, "videoId")
}

// ToggleComment handles POST /api/v1/likes/toggle/c/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.TargetComment, "commentId")
}

// ToggleTweet handles POST /api/v1/likes/toggle/t/{tweetId}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.TargetTweet, "tweetId")
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, kind models.TargetKind, param string) {
	ctx := r.Context()
	target := models.LikeTarget{Kind: kind, ID: r.PathValue(param)}
	status, err := h.Likes.Toggle(ctx, middleware.UserID(ctx), target)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, status)
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := pageRequest(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	page, err := h.Likes.LikedVideos(ctx, middleware.UserID(ctx), req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}
