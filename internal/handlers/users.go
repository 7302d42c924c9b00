package handlers

import (
	"context"
	"net/http"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/middleware"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/service"
)

type imageUpdate func(ctx context.Context, userID, path string) (models.User, error)

// UserHandler serves account and channel endpoints for signed-in users.
type UserHandler struct {
	Users   UserService
	Uploads Uploads
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.Users.CurrentUser(ctx, middleware.UserID(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.ChangePasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := h.Users.ChangePassword(ctx, middleware.UserID(ctx), in); err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "password changed"})
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.UpdateAccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, err)
		return
	}
	user, err := h.Users.UpdateAccount(ctx, middleware.UserID(ctx), in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", h.Users.UpdateCoverImage)
}

func (h UserHandler) replaceImage(w http.ResponseWriter, r *http.Request, field string, update imageUpdate) {
	ctx := r.Context()
	if err := h.Uploads.parse(w, r); err != nil {
		respondError(ctx, w, err)
		return
	}
	path, err := h.Uploads.save(r, field)
	defer cleanup(r, path)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if path == "" {
		respondError(ctx, w, apperr.Validation(field+" file is missing"))
		return
	}

	user, err := update(ctx, middleware.UserID(ctx), path)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}

// ChannelProfile handles GET /api/v1/users/c/{username}.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.Users.ChannelProfile(ctx, r.PathValue("username"), middleware.UserID(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, profile)
}

// WatchHistory handles GET /api/v1/users/history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := pageRequest(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	page, err := h.Users.WatchHistory(ctx, middleware.UserID(ctx), req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}
