// Package cascade removes records that depend on a deleted entity.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/models"
)

// LikeRemover deletes likes by target. Deleting zero rows is not an error.
type LikeRemover interface {
	DeleteByTargets(ctx context.Context, kind models.TargetKind, ids []string) (int64, error)
}

// CommentRemover lists and deletes the comments on a video.
type CommentRemover interface {
	IDsByVideo(ctx context.Context, videoID string) ([]string, error)
	DeleteByVideo(ctx context.Context, videoID string) (int64, error)
}

// FailureObserver is notified when a cascade leaves dependents behind.
type FailureObserver func(kind models.TargetKind)

// Coordinator runs the dependent deletes for a primary delete that already committed.
type Coordinator struct {
	likes    LikeRemover
	comments CommentRemover
	onFail   FailureObserver
}

// NewCoordinator constructs a Coordinator. onFail may be nil.
func NewCoordinator(likes LikeRemover, comments CommentRemover, onFail FailureObserver) *Coordinator {
	if likes == nil || comments == nil {
		panic("cascade: removers must not be nil")
	}
	return &Coordinator{likes: likes, comments: comments, onFail: onFail}
}

// OnDelete removes the likes targeting (kind, id). Deleting a video also
// removes its comments together with the likes on those comments. Re-running
// OnDelete for the same target is a no-op. Any failure is reported as a
// partial failure since the primary delete cannot be rolled back.
func (c *Coordinator) OnDelete(ctx context.Context, kind models.TargetKind, id string) error {
	ctx, span := logging.StartSpan(ctx, "cascade."+string(kind))
	defer span.End()

	var err error
	switch kind {
	case models.TargetVideo:
		err = c.deleteVideoDependents(ctx, id)
	case models.TargetComment, models.TargetTweet:
		_, err = c.likes.DeleteByTargets(ctx, kind, []string{id})
	default:
		return apperr.Validation(fmt.Sprintf("unknown cascade kind %q", kind))
	}
	if err == nil {
		return nil
	}
	span.Fail(err)

	logging.FromContext(ctx).Error("cascade incomplete", "kind", kind, "id", id, "error", err)
	if c.onFail != nil {
		c.onFail(kind)
	}
	return apperr.Partial(fmt.Sprintf("%s deleted but dependent records remain", kind), err)
}

// deleteVideoDependents removes comment likes before the comments themselves so
// that a failed run can be repeated without orphaning likes.
func (c *Coordinator) deleteVideoDependents(ctx context.Context, videoID string) error {
	var errs []error

	commentIDs, err := c.comments.IDsByVideo(ctx, videoID)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("list comments: %w", err))
	case len(commentIDs) > 0:
		if _, err := c.likes.DeleteByTargets(ctx, models.TargetComment, commentIDs); err != nil {
			errs = append(errs, fmt.Errorf("delete comment likes: %w", err))
			break
		}
		if _, err := c.comments.DeleteByVideo(ctx, videoID); err != nil {
			errs = append(errs, fmt.Errorf("delete comments: %w", err))
		}
	}

	if _, err := c.likes.DeleteByTargets(ctx, models.TargetVideo, []string{videoID}); err != nil {
		errs = append(errs, fmt.Errorf("delete video likes: %w", err))
	}

	return errors.Join(errs...)
}
