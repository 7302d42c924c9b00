package handlers

import (
	"net/http"

	"github.com/vidstream/backend/internal/middleware"
	"github.com/vidstream/backend/internal/service"
)

// CommentHandler serves comment endpoints.
type CommentHandler struct {
	Comments CommentService
}

// List handles GET /api/v1/comments/{videoId}.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := pageRequest(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	page, err := h.Comments.List(ctx, r.PathValue("videoId"), middleware.UserID(ctx), req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// Add handles POST /api/v1/comments/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.ContentInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, err)
		return
	}
	comment, err := h.Comments.Add(ctx, middleware.UserID(ctx), r.PathValue("videoId"), in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, comment)
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.ContentInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, err)
		return
	}
	comment, err := h.Comments.Update(ctx, middleware.UserID(ctx), r.PathValue("commentId"), in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, comment)
}

// Delete handles DELETE /api/v1/comments/c/{commentId}. Video owners may
// remove comments left by others.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	commentID := r.PathValue("commentId")
	if err := h.Comments.Delete(ctx, middleware.UserID(ctx), commentID); err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted", "commentId": commentID})
}
