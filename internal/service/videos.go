package service

import (
	"context"
	"strings"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/cascade"
	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/ownership"
	"github.com/vidstream/backend/internal/paginate"
	"github.com/vidstream/backend/internal/pipeline"
	"github.com/vidstream/backend/internal/storage"
)

// VideoQuery narrows and orders the public video listing.
type VideoQuery struct {
	Query    string `json:"query" validate:"max=200"`
	UserID   string `json:"userId"`
	SortBy   string `json:"sortBy" validate:"omitempty,oneof=createdAt views duration title"`
	SortType string `json:"sortType" validate:"omitempty,oneof=asc desc"`
}

// PublishInput describes a new video. The paths point at uploaded temporary files.
type PublishInput struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"required,max=5000"`
	VideoPath     string `json:"videoFile" validate:"required"`
	ThumbnailPath string `json:"thumbnail" validate:"required"`
}

// UpdateVideoInput changes video details. At least one field is required.
type UpdateVideoInput struct {
	Title         string `json:"title" validate:"max=200"`
	Description   string `json:"description" validate:"max=5000"`
	ThumbnailPath string `json:"thumbnail"`
}

// VideoService manages videos.
type VideoService struct {
	*base
	cascade *cascade.Coordinator
}

// List returns published videos matching q.
func (s *VideoService) List(ctx context.Context, q VideoQuery, req paginate.Request) (paginate.Page[pipeline.Record], error) {
	q.Query = strings.TrimSpace(q.Query)
	if err := s.validator.Struct(q); err != nil {
		return paginate.Page[pipeline.Record]{}, err
	}
	if q.SortBy == "" {
		q.SortBy = pipeline.DefaultSortField
	}
	return s.page(ctx, videoListingPipeline(q), req)
}

// Publish uploads the video and thumbnail and stores the video record.
func (s *VideoService) Publish(ctx context.Context, ownerID string, in PublishInput) (models.Video, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validator.Struct(in); err != nil {
		return models.Video{}, err
	}
	if err := s.requireUser(ctx, ownerID); err != nil {
		return models.Video{}, err
	}

	logger := logging.FromContext(ctx).With("ownerId", ownerID)
	file, err := s.store(ctx, in.VideoPath, storage.KindVideo, "video")
	if err != nil {
		logger.Error("upload video", "error", err)
		return models.Video{}, err
	}
	thumb, err := s.store(ctx, in.ThumbnailPath, storage.KindImage, "thumbnail")
	if err != nil {
		logger.Error("upload thumbnail", "error", err)
		return models.Video{}, s.compensate(ctx, err, file)
	}

	now := s.now()
	video := models.Video{
		ID:          newID(),
		OwnerID:     ownerID,
		VideoFile:   file.URL,
		VideoFileID: file.PublicID,
		Thumbnail:   thumb.URL,
		ThumbnailID: thumb.PublicID,
		Title:       in.Title,
		Description: in.Description,
		Duration:    file.Duration,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.deps.Videos.Create(ctx, video); err != nil {
		return models.Video{}, s.compensate(ctx, translate(err, "video"), file, thumb)
	}
	logger.Info("video published", "videoId", video.ID)
	return video, nil
}

// Get returns the video detail view. Unpublished videos are visible to their
// owner only. Signed-in viewers other than the owner count as a view and get
// the video added to their watch history; anonymous fetches are not counted.
func (s *VideoService) Get(ctx context.Context, videoID, viewer string) (pipeline.Record, error) {
	video, err := s.deps.Videos.FindByID(ctx, videoID)
	if err != nil {
		return nil, translate(err, "video")
	}
	isOwner := viewer != "" && viewer == video.OwnerID
	if !video.IsPublished && !isOwner {
		return nil, apperr.NotFound("video not found")
	}

	if viewer != "" && !isOwner {
		if err := s.deps.Videos.IncrementViews(ctx, videoID); err != nil {
			return nil, translate(err, "video")
		}
		if err := s.deps.Users.AddToWatchHistory(ctx, viewer, videoID); err != nil {
			return nil, translate(err, "user")
		}
	}
	return s.one(ctx, videoDetailPipeline(videoID, viewer), "video")
}

// Update changes the title, description or thumbnail of actor's video.
func (s *VideoService) Update(ctx context.Context, actor, videoID string, in UpdateVideoInput) (models.Video, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" && in.Description == "" && in.ThumbnailPath == "" {
		return models.Video{}, apperr.Validation("title, description or thumbnail is required")
	}
	if err := s.validator.Struct(in); err != nil {
		return models.Video{}, err
	}

	video, err := s.deps.Videos.FindByID(ctx, videoID)
	if err != nil {
		return models.Video{}, translate(err, "video")
	}
	if err := ownership.Require(actor, video, nil, "update this video"); err != nil {
		return models.Video{}, err
	}

	oldThumb := video.ThumbnailID
	var thumb storage.Asset
	if in.ThumbnailPath != "" {
		thumb, err = s.store(ctx, in.ThumbnailPath, storage.KindImage, "thumbnail")
		if err != nil {
			return models.Video{}, err
		}
		video.Thumbnail, video.ThumbnailID = thumb.URL, thumb.PublicID
	}
	if in.Title != "" {
		video.Title = in.Title
	}
	if in.Description != "" {
		video.Description = in.Description
	}
	video.UpdatedAt = s.now()

	if err := s.deps.Videos.Update(ctx, video); err != nil {
		return models.Video{}, s.compensate(ctx, translate(err, "video"), thumb)
	}
	if thumb.PublicID != "" && oldThumb != "" {
		s.reap(ctx, storage.Asset{PublicID: oldThumb, Kind: storage.KindImage})
	}
	return video, nil
}

// TogglePublish flips the publish state of actor's video.
func (s *VideoService) TogglePublish(ctx context.Context, actor, videoID string) (models.Video, error) {
	video, err := s.deps.Videos.FindByID(ctx, videoID)
	if err != nil {
		return models.Video{}, translate(err, "video")
	}
	if err := ownership.Require(actor, video, nil, "change this video"); err != nil {
		return models.Video{}, err
	}
	video.IsPublished = !video.IsPublished
	video.UpdatedAt = s.now()
	if err := s.deps.Videos.Update(ctx, video); err != nil {
		return models.Video{}, translate(err, "video")
	}
	return video, nil
}

// Delete removes actor's video, then its likes, comments and stored files.
func (s *VideoService) Delete(ctx context.Context, actor, videoID string) error {
	video, err := s.deps.Videos.FindByID(ctx, videoID)
	if err != nil {
		return translate(err, "video")
	}
	if err := ownership.Require(actor, video, nil, "delete this video"); err != nil {
		return err
	}
	if err := s.deps.Videos.Delete(ctx, videoID); err != nil {
		return translate(err, "video")
	}

	s.reap(ctx,
		storage.Asset{PublicID: video.VideoFileID, Kind: storage.KindVideo},
		storage.Asset{PublicID: video.ThumbnailID, Kind: storage.KindImage},
	)
	if err := s.cascade.OnDelete(ctx, models.TargetVideo, videoID); err != nil {
		logging.FromContext(ctx).Error("video dependents left behind", "videoId", videoID, "error", err)
		return err
	}
	return nil
}
