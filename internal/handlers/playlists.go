package handlers

import (
	"net/http"

	"github.com/vidstream/backend/internal/middleware"
	"github.com/vidstream/backend/internal/service"
)

// PlaylistHandler serves playlist endpoints.
type PlaylistHandler struct {
	Playlists PlaylistService
}

// Create handles POST /api/v1/playlist.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.PlaylistInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, err)
		return
	}
	playlist, err := h.Playlists.Create(ctx, middleware.UserID(ctx), in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, playlist)
}

// Get handles GET /api/v1/playlist/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlist, err := h.Playlists.Get(ctx, r.PathValue("playlistId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, playlist)
}

// ListByUser handles GET /api/v1/playlist/user/{userId}.
func (h PlaylistHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := pageRequest(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	page, err := h.Playlists.ListByUser(ctx, r.PathValue("userId"), req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// AddVideo handles PATCH /api/v1/playlist/add/{videoId}/{playlistId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlist, err := h.Playlists.AddVideo(ctx, middleware.UserID(ctx), r.PathValue("playlistId"), r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, playlist)
}

// RemoveVideo handles PATCH /api/v1/playlist/remove/{videoId}/{playlistId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlist, err := h.Playlists.RemoveVideo(ctx, middleware.UserID(ctx), r.PathValue("playlistId"), r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, playlist)
}

// Update handles PATCH /api/v1/playlist/{playlistId}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.PlaylistUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(ctx, w, err)
		return
	}
	playlist, err := h.Playlists.Update(ctx, middleware.UserID(ctx), r.PathValue("playlistId"), in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, playlist)
}

// Delete handles DELETE /api/v1/playlist/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID := r.PathValue("playlistId")
	if err := h.Playlists.Delete(ctx, middleware.UserID(ctx), playlistID); err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted", "playlistId": playlistID})
}
