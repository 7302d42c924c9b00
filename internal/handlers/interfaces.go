package handlers

import (
	"context"

	"github.com/vidstream/backend/internal/auth"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/paginate"
	"github.com/vidstream/backend/internal/pipeline"
	"github.com/vidstream/backend/internal/service"
)

type recordPage = paginate.Page[pipeline.Record]

// UserService captures the account operations required by the user handlers.
type UserService interface {
	Register(ctx context.Context, in service.RegisterInput) (models.User, error)
	CurrentUser(ctx context.Context, userID string) (models.User, error)
	ChangePassword(ctx context.Context, userID string, in service.ChangePasswordInput) error
	UpdateAccount(ctx context.Context, userID string, in service.UpdateAccountInput) (models.User, error)
	UpdateAvatar(ctx context.Context, userID, path string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID, path string) (models.User, error)
	ChannelProfile(ctx context.Context, username, viewer string) (pipeline.Record, error)
	WatchHistory(ctx context.Context, userID string, req paginate.Request) (recordPage, error)
}

// SessionManager issues, rotates and ends sessions.
type SessionManager interface {
	Login(ctx context.Context, creds auth.Credentials) (models.User, models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Logout(ctx context.Context, id auth.Identity) error
	Authenticate(ctx context.Context, accessToken string) (auth.Identity, error)
}

// VideoService captures video publishing and browsing.
type VideoService interface {
	List(ctx context.Context, q service.VideoQuery, req paginate.Request) (recordPage, error)
	Publish(ctx context.Context, ownerID string, in service.PublishInput) (models.Video, error)
	Get(ctx context.Context, videoID, viewer string) (pipeline.Record, error)
	Update(ctx context.Context, actor, videoID string, in service.UpdateVideoInput) (models.Video, error)
	TogglePublish(ctx context.Context, actor, videoID string) (models.Video, error)
	Delete(ctx context.Context, actor, videoID string) error
}

// CommentService captures comment operations.
type CommentService interface {
	List(ctx context.Context, videoID, viewer string, req paginate.Request) (recordPage, error)
	Add(ctx context.Context, actor, videoID string, in service.ContentInput) (models.Comment, error)
	Update(ctx context.Context, actor, commentID string, in service.ContentInput) (models.Comment, error)
	Delete(ctx context.Context, actor, commentID string) error
}

// TweetService captures tweet operations.
type TweetService interface {
	Create(ctx context.Context, actor string, in service.ContentInput) (models.Tweet, error)
	ListByUser(ctx context.Context, userID, viewer string, req paginate.Request) (recordPage, error)
	Update(ctx context.Context, actor, tweetID string, in service.ContentInput) (models.Tweet, error)
	Delete(ctx context.Context, actor, tweetID string) error
}

// LikeService captures like toggles.
type LikeService interface {
	Toggle(ctx context.Context, actor string, target models.LikeTarget) (service.LikeStatus, error)
	LikedVideos(ctx context.Context, actor string, req paginate.Request) (recordPage, error)
}

// SubscriptionService captures channel subscriptions.
type SubscriptionService interface {
	Toggle(ctx context.Context, actor, channelID string) (service.SubscriptionStatus, error)
	Subscribers(ctx context.Context, channelID string, req paginate.Request) (recordPage, error)
	SubscribedChannels(ctx context.Context, subscriberID string, req paginate.Request) (recordPage, error)
}

// PlaylistService captures playlist curation.
type PlaylistService interface {
	Create(ctx context.Context, actor string, in service.PlaylistInput) (models.Playlist, error)
	Get(ctx context.Context, playlistID string) (pipeline.Record, error)
	ListByUser(ctx context.Context, userID string, req paginate.Request) (recordPage, error)
	AddVideo(ctx context.Context, actor, playlistID, videoID string) (models.Playlist, error)
	RemoveVideo(ctx context.Context, actor, playlistID, videoID string) (models.Playlist, error)
	Update(ctx context.Context, actor, playlistID string, in service.PlaylistUpdate) (models.Playlist, error)
	Delete(ctx context.Context, actor, playlistID string) error
}
