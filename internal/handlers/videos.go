package handlers

import (
	"mime"
	"net/http"

	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/middleware"
	"github.com/vidstream/backend/internal/service"
)

// VideoHandler serves video publishing and browsing endpoints.
type VideoHandler struct {
	Videos  VideoService
	Uploads Uploads
}

// List handles GET /api/v1/videos. It accepts query, userId, sortBy and
// sortType filters together with page and limit.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := pageRequest(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	q := r.URL.Query()
	page, err := h.Videos.List(ctx, service.VideoQuery{
		Query:    q.Get("query"),
		UserID:   q.Get("userId"),
		SortBy:   q.Get("sortBy"),
		SortType: q.Get("sortType"),
	}, req)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// Publish handles POST /api/v1/videos. The multipart form carries title,
// description, a videoFile and a thumbnail.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Uploads.parse(w, r); err != nil {
		respondError(ctx, w, err)
		return
	}
	videoPath, err := h.Uploads.save(r, "videoFile")
	if err != nil {
		cleanup(r)
		respondError(ctx, w, err)
		return
	}
	thumbPath, err := h.Uploads.save(r, "thumbnail")
	defer cleanup(r, videoPath, thumbPath)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	video, err := h.Videos.Publish(ctx, middleware.UserID(ctx), service.PublishInput{
		Title:         r.FormValue("title"),
		Description:   r.FormValue("description"),
		VideoPath:     videoPath,
		ThumbnailPath: thumbPath,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	logging.FromContext(ctx).Info("video published", "videoId", video.ID, "ownerId", video.OwnerID)
	respondJSON(ctx, w, http.StatusCreated, video)
}

// Get handles GET /api/v1/videos/{videoId}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	video, err := h.Videos.Get(ctx, r.PathValue("videoId"), middleware.UserID(ctx))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, video)
}

// Update handles PATCH /api/v1/videos/{videoId}. Clients replacing the
// thumbnail send a multipart form, others may send JSON.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in service.UpdateVideoInput
	if isMultipart(r) {
		if err := h.Uploads.parse(w, r); err != nil {
			respondError(ctx, w, err)
			return
		}
		thumbPath, err := h.Uploads.save(r, "thumbnail")
		defer cleanup(r, thumbPath)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		in = service.UpdateVideoInput{
			Title:         r.FormValue("title"),
			Description:   r.FormValue("description"),
			ThumbnailPath: thumbPath,
		}
	} else {
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			respondError(ctx, w, err)
			return
		}
		in = service.UpdateVideoInput{Title: body.Title, Description: body.Description}
	}

	video, err := h.Videos.Update(ctx, middleware.UserID(ctx), r.PathValue("videoId"), in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, video)
}

// Delete handles DELETE /api/v1/videos/{videoId}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := r.PathValue("videoId")
	if err := h.Videos.Delete(ctx, middleware.UserID(ctx), videoID); err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted", "videoId": videoID})
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	video, err := h.Videos.TogglePublish(ctx, middleware.UserID(ctx), r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, video)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
