package repositories

import (
	"context"
	"time"

	"github.com/vidstream/backend/internal/models"
)

// VideoRepository exposes data access for uploaded videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	// Update writes the mutable fields: title, description, thumbnail and publish state.
	Update(ctx context.Context, video models.Video) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
}

// CommentRepository exposes data access for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	UpdateContent(ctx context.Context, id, content string, at time.Time) error
	Delete(ctx context.Context, id string) error
	IDsByVideo(ctx context.Context, videoID string) ([]string, error)
	DeleteByVideo(ctx context.Context, videoID string) (int64, error)
}

// TweetRepository exposes data access for tweets.
type TweetRepository interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	UpdateContent(ctx context.Context, id, content string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// PlaylistRepository exposes data access for playlists.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	UpdateDetails(ctx context.Context, id, name, description string, at time.Time) error
	Delete(ctx context.Context, id string) error
	// AddVideo appends videoID unless already present.
	AddVideo(ctx context.Context, id, videoID string, at time.Time) error
	RemoveVideo(ctx context.Context, id, videoID string, at time.Time) error
}

// LikeRepository stores likes keyed by (likedBy, target).
type LikeRepository interface {
	FindLike(ctx context.Context, likedBy string, target models.LikeTarget) (models.Like, error)
	CreateLike(ctx context.Context, like models.Like) error
	DeleteLike(ctx context.Context, id string) error
	DeleteByTargets(ctx context.Context, kind models.TargetKind, ids []string) (int64, error)
}

// SubscriptionRepository stores subscriptions keyed by (subscriber, channel).
type SubscriptionRepository interface {
	FindSubscription(ctx context.Context, subscriberID, channelID string) (models.Subscription, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) error
	DeleteSubscription(ctx context.Context, id string) error
}
