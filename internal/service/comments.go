package service

import (
	"context"
	"strings"

	"github.com/vidstream/backend/internal/cascade"
	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/ownership"
	"github.com/vidstream/backend/internal/paginate"
	"github.com/vidstream/backend/internal/pipeline"
)

// ContentInput carries the text of a comment or tweet.
type ContentInput struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// CommentService manages comments on videos.
type CommentService struct {
	*base
	cascade *cascade.Coordinator
}

// List returns the comments on a video, newest first.
func (s *CommentService) List(ctx context.Context, videoID, viewer string, req paginate.Request) (paginate.Page[pipeline.Record], error) {
	if _, err := s.deps.Videos.FindByID(ctx, videoID); err != nil {
		return paginate.Page[pipeline.Record]{}, translate(err, "video")
	}
	return s.page(ctx, commentListingPipeline(videoID, viewer), req)
}

// Add comments on an existing video.
func (s *CommentService) Add(ctx context.Context, actor, videoID string, in ContentInput) (models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := s.validator.Struct(in); err != nil {
		return models.Comment{}, err
	}
	if err := s.requireUser(ctx, actor); err != nil {
		return models.Comment{}, err
	}
	if _, err := s.deps.Videos.FindByID(ctx, videoID); err != nil {
		return models.Comment{}, translate(err, "video")
	}

	now := s.now()
	comment := models.Comment{
		ID:        newID(),
		VideoID:   videoID,
		OwnerID:   actor,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.Comments.Create(ctx, comment); err != nil {
		return models.Comment{}, translate(err, "comment")
	}
	return comment, nil
}

// Update edits actor's own comment.
func (s *CommentService) Update(ctx context.Context, actor, commentID string, in ContentInput) (models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := s.validator.Struct(in); err != nil {
		return models.Comment{}, err
	}
	comment, err := s.deps.Comments.FindByID(ctx, commentID)
	if err != nil {
		return models.Comment{}, translate(err, "comment")
	}
	if err := ownership.Require(actor, comment, nil, "edit this comment"); err != nil {
		return models.Comment{}, err
	}

	comment.Content, comment.UpdatedAt = in.Content, s.now()
	if err := s.deps.Comments.UpdateContent(ctx, commentID, comment.Content, comment.UpdatedAt); err != nil {
		return models.Comment{}, translate(err, "comment")
	}
	return comment, nil
}

// Delete removes a comment. The comment's author and the owner of the video it
// is attached to may both delete it.
func (s *CommentService) Delete(ctx context.Context, actor, commentID string) error {
	comment, err := s.deps.Comments.FindByID(ctx, commentID)
	if err != nil {
		return translate(err, "comment")
	}

	var parent ownership.Owned
	video, err := s.deps.Videos.FindByID(ctx, comment.VideoID)
	switch {
	case err == nil:
		parent = video
	case !isNotFound(err):
		return translate(err, "video")
	}
	if err := ownership.Require(actor, comment, parent, "delete this comment"); err != nil {
		return err
	}

	if err := s.deps.Comments.Delete(ctx, commentID); err != nil {
		return translate(err, "comment")
	}
	if err := s.cascade.OnDelete(ctx, models.TargetComment, commentID); err != nil {
		logging.FromContext(ctx).Error("comment likes left behind", "commentId", commentID, "error", err)
		return err
	}
	return nil
}
