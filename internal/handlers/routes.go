package handlers

import (
	"net/http"

	"github.com/vidstream/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	authed := middleware.RequireAuth(deps.Sessions)
	optional := middleware.OptionalAuth(deps.Sessions)
	private := func(h http.HandlerFunc) http.Handler { return authed(h) }
	public := func(h http.HandlerFunc) http.Handler { return optional(h) }

	sessions := AuthHandler{
		Users:         deps.Users,
		Sessions:      deps.Sessions,
		Limiter:       deps.Limiter,
		Uploads:       deps.Uploads,
		SecureCookies: deps.SecureCookies,
	}
	users := UserHandler{Users: deps.Users, Uploads: deps.Uploads}
	videos := VideoHandler{Videos: deps.Videos, Uploads: deps.Uploads}
	comments := CommentHandler{Comments: deps.Comments}
	tweets := TweetHandler{Tweets: deps.Tweets}
	likes := LikeHandler{Likes: deps.Likes}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions}
	playlists := PlaylistHandler{Playlists: deps.Playlists}

	mux.HandleFunc("/healthz", deps.Health.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.HandleFunc("POST /api/v1/users/register", sessions.Register)
	mux.HandleFunc("POST /api/v1/users/login", sessions.Login)
	mux.HandleFunc("POST /api/v1/users/refresh-token", sessions.Refresh)
	mux.Handle("POST /api/v1/users/logout", private(sessions.Logout))
	mux.Handle("POST /api/v1/users/change-password", private(users.ChangePassword))
	mux.Handle("GET /api/v1/users/current-user", private(users.CurrentUser))
	mux.Handle("PATCH /api/v1/users/update-account", private(users.UpdateAccount))
	mux.Handle("PATCH /api/v1/users/avatar", private(users.UpdateAvatar))
	mux.Handle("PATCH /api/v1/users/cover-image", private(users.UpdateCoverImage))
	mux.Handle("GET /api/v1/users/c/{username}", public(users.ChannelProfile))
	mux.Handle("GET /api/v1/users/history", private(users.WatchHistory))

	mux.Handle("GET /api/v1/videos", public(videos.List))
	mux.Handle("POST /api/v1/videos", private(videos.Publish))
	mux.Handle("GET /api/v1/videos/{videoId}", public(videos.Get))
	mux.Handle("PATCH /api/v1/videos/{videoId}", private(videos.Update))
	mux.Handle("DELETE /api/v1/videos/{videoId}", private(videos.Delete))
	mux.Handle("PATCH /api/v1/videos/toggle/publish/{videoId}", private(videos.TogglePublish))

	mux.Handle("GET /api/v1/comments/{videoId}", public(comments.List))
	mux.Handle("POST /api/v1/comments/{videoId}", private(comments.Add))
	mux.Handle("PATCH /api/v1/comments/c/{commentId}", private(comments.Update))
	mux.Handle("DELETE /api/v1/comments/c/{commentId}", private(comments.Delete))

	mux.Handle("POST /api/v1/tweets", private(tweets.Create))
	mux.Handle("GET /api/v1/tweets/user/{userId}", public(tweets.ListByUser))
	mux.Handle("PATCH /api/v1/tweets/{tweetId}", private(tweets.Update))
	mux.Handle("DELETE /api/v1/tweets/{tweetId}", private(tweets.Delete))

	mux.Handle("POST /api/v1/likes/toggle/v/{videoId}", private(likes.ToggleVideo))
	mux.Handle("POST /api/v1/likes/toggle/c/{commentId}", private(likes.ToggleComment))
	mux.Handle("POST /api/v1/likes/toggle/t/{tweetId}", private(likes.ToggleTweet))
	mux.Handle("GET /api/v1/likes/videos", private(likes.LikedVideos))

	mux.Handle("POST /api/v1/subscriptions/c/{channelId}", private(subscriptions.Toggle))
	mux.Handle("GET /api/v1/subscriptions/c/{channelId}", public(subscriptions.Subscribers))
	mux.Handle("GET /api/v1/subscriptions/u/{subscriberId}", public(subscriptions.SubscribedChannels))

	mux.Handle("POST /api/v1/playlist", private(playlists.Create))
	mux.Handle("GET /api/v1/playlist/{playlistId}", public(playlists.Get))
	mux.Handle("PATCH /api/v1/playlist/{playlistId}", private(playlists.Update))
	mux.Handle("DELETE /api/v1/playlist/{playlistId}", private(playlists.Delete))
	mux.Handle("PATCH /api/v1/playlist/add/{videoId}/{playlistId}", private(playlists.AddVideo))
	mux.Handle("PATCH /api/v1/playlist/remove/{videoId}/{playlistId}", private(playlists.RemoveVideo))
	mux.Handle("GET /api/v1/playlist/user/{userId}", public(playlists.ListByUser))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserService
	Sessions      SessionManager
	Videos        VideoService
	Comments      CommentService
	Tweets        TweetService
	Likes         LikeService
	Subscriptions SubscriptionService
	Playlists     PlaylistService
	Limiter       RateLimiter
	Uploads       Uploads
	SecureCookies bool
	Health        HealthHandler
	Metrics       http.Handler
}
