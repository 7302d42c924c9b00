package service

import (
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/pipeline"
)

// Read models. Every pipeline emits sanitized records; the handlers serialize
// them as-is.

func channelProfilePipeline(username, viewer string) pipeline.Pipeline {
	return pipeline.From(models.CollectionUsers).
		Match(pipeline.Eq("username", username)).
		Lookup(pipeline.Join{
			From:         models.CollectionSubscriptions,
			LocalField:   "id",
			ForeignField: "channelId",
			As:           "subscribers",
		}).
		Lookup(pipeline.Join{
			From:         models.CollectionSubscriptions,
			LocalField:   "id",
			ForeignField: "subscriberId",
			As:           "subscribedTo",
		}).
		Derive("subscribersCount", pipeline.Size("subscribers")).
		Derive("channelsSubscribedToCount", pipeline.Size("subscribedTo")).
		Derive("isSubscribed", pipeline.Contains("subscribers.subscriberId", viewer)).
		Project("id", "username", "fullName", "email", "avatar", "coverImage",
			"subscribersCount", "channelsSubscribedToCount", "isSubscribed", "createdAt").
		Build()
}

func watchHistoryPipeline(userID string) pipeline.Pipeline {
	return pipeline.From(models.CollectionUsers).
		Match(pipeline.Eq("id", userID)).
		Lookup(pipeline.Join{
			From:         models.CollectionVideos,
			LocalField:   "watchHistory",
			ForeignField: "id",
			As:           "history",
			Pipeline:     pipeline.Inner().Lookup(ownerJoin("ownerId")).Stages(),
		}).
		ReplaceRoot("history").
		Build()
}

func likedVideosPipeline(userID string) pipeline.Pipeline {
	return pipeline.From(models.CollectionLikes).
		Match(
			pipeline.Eq("likedBy", userID),
			pipeline.Eq("targetKind", string(models.TargetVideo)),
		).
		Sort("", true).
		Lookup(pipeline.Join{
			From:         models.CollectionVideos,
			LocalField:   "targetId",
			ForeignField: "id",
			As:           "video",
			One:          true,
			Required:     true,
			Pipeline:     pipeline.Inner().Lookup(ownerJoin("ownerId")).Stages(),
		}).
		ReplaceRoot("video").
		Build()
}

// channelSubscribersPipeline lists the users subscribed to channelID, each with
// their own subscriber count and whether the channel subscribes back.
func channelSubscribersPipeline(channelID string) pipeline.Pipeline {
	return pipeline.From(models.CollectionSubscriptions).
		Match(pipeline.Eq("channelId", channelID)).
		Sort("", true).
		Lookup(pipeline.Join{
			From:         models.CollectionUsers,
			LocalField:   "subscriberId",
			ForeignField: "id",
			As:           "subscriber",
			One:          true,
			Required:     true,
			Pipeline: pipeline.Inner().
				Lookup(pipeline.Join{
					From:         models.CollectionSubscriptions,
					LocalField:   "id",
					ForeignField: "channelId",
					As:           "subscribers",
				}).
				Derive("subscribedToSubscriber", pipeline.Contains("subscribers.subscriberId", channelID)).
				Derive("subscribersCount", pipeline.Size("subscribers")).
				Project("id", "username", "fullName", "avatar", "subscribedToSubscriber", "subscribersCount").
				Stages(),
		}).
		ReplaceRoot("subscriber").
		Build()
}

func subscribedChannelsPipeline(subscriberID string) pipeline.Pipeline {
	return pipeline.From(models.CollectionSubscriptions).
		Match(pipeline.Eq("subscriberId", subscriberID)).
		Sort("", true).
		Lookup(pipeline.Join{
			From:         models.CollectionUsers,
			LocalField:   "channelId",
			ForeignField: "id",
			As:           "channel",
			One:          true,
			Required:     true,
			Pipeline: pipeline.Inner().
				Lookup(pipeline.Join{
					From:         models.CollectionVideos,
					LocalField:   "id",
					ForeignField: "ownerId",
					As:           "videos",
					Pipeline: pipeline.Inner().
						Match(pipeline.Eq("isPublished", true)).
						Sort("", true).
						Project("id", "title", "thumbnail", "duration", "views", "createdAt").
						Stages(),
				}).
				Derive("latestVideo", pipeline.First("videos")).
				Project("id", "username", "fullName", "avatar", "latestVideo").
				Stages(),
		}).
		ReplaceRoot("channel").
		Build()
}

// videoListingPipeline lists published videos, optionally narrowed to one
// owner and to a case-insensitive text match on title or description.
func videoListingPipeline(q VideoQuery) pipeline.Pipeline {
	return pipeline.From(models.CollectionVideos).
		Match(pipeline.Eq("isPublished", true)).
		When(q.UserID != "", func(b *pipeline.Builder) {
			b.Match(pipeline.Eq("ownerId", q.UserID))
		}).
		When(q.Query != "", func(b *pipeline.Builder) {
			b.Match(pipeline.Or(
				pipeline.MatchText("title", q.Query),
				pipeline.MatchText("description", q.Query),
			))
		}).
		Sort(q.SortBy, q.SortType != "asc").
		Lookup(ownerJoin("ownerId")).
		Build()
}

func videoDetailPipeline(videoID, viewer string) pipeline.Pipeline {
	return pipeline.From(models.CollectionVideos).
		Match(pipeline.Eq("id", videoID)).
		Lookup(likesJoin(models.TargetVideo)).
		Derive("likesCount", pipeline.Size("likes")).
		Derive("isLiked", pipeline.Contains("likes.likedBy", viewer)).
		Lookup(pipeline.Join{
			From:         models.CollectionUsers,
			LocalField:   "ownerId",
			ForeignField: "id",
			As:           "owner",
			One:          true,
			Pipeline: pipeline.Inner().
				Lookup(pipeline.Join{
					From:         models.CollectionSubscriptions,
					LocalField:   "id",
					ForeignField: "channelId",
					As:           "subscribers",
				}).
				Derive("subscribersCount", pipeline.Size("subscribers")).
				Derive("isSubscribed", pipeline.Contains("subscribers.subscriberId", viewer)).
				Project("id", "username", "fullName", "avatar", "subscribersCount", "isSubscribed").
				Stages(),
		}).
		Exclude("likes").
		Build()
}

func commentListingPipeline(videoID, viewer string) pipeline.Pipeline {
	return pipeline.From(models.CollectionComments).
		Match(pipeline.Eq("videoId", videoID)).
		Sort("", true).
		Lookup(likesJoin(models.TargetComment)).
		Derive("likesCount", pipeline.Size("likes")).
		Derive("isLiked", pipeline.Contains("likes.likedBy", viewer)).
		Lookup(ownerJoin("ownerId")).
		Exclude("likes").
		Build()
}

func tweetListingPipeline(ownerID, viewer string) pipeline.Pipeline {
	return pipeline.From(models.CollectionTweets).
		Match(pipeline.Eq("ownerId", ownerID)).
		Sort("", true).
		Lookup(likesJoin(models.TargetTweet)).
		Derive("likesCount", pipeline.Size("likes")).
		Derive("isLiked", pipeline.Contains("likes.likedBy", viewer)).
		Lookup(ownerJoin("ownerId")).
		Exclude("likes").
		Build()
}

func playlistListingPipeline(ownerID string) pipeline.Pipeline {
	return pipeline.From(models.CollectionPlaylists).
		Match(pipeline.Eq("ownerId", ownerID)).
		Sort("", true).
		Lookup(pipeline.Join{
			From:         models.CollectionVideos,
			LocalField:   "videos",
			ForeignField: "id",
			As:           "videos",
			Pipeline:     pipeline.Inner().Project("id", "title", "thumbnail", "duration", "views").Stages(),
		}).
		Derive("totalVideos", pipeline.Size("videos")).
		Build()
}

// playlistDetailPipeline resolves the playlist's video references in order.
// References to deleted or unpublished videos are dropped.
func playlistDetailPipeline(playlistID string) pipeline.Pipeline {
	return pipeline.From(models.CollectionPlaylists).
		Match(pipeline.Eq("id", playlistID)).
		Lookup(pipeline.Join{
			From:         models.CollectionVideos,
			LocalField:   "videos",
			ForeignField: "id",
			As:           "videos",
			Pipeline: pipeline.Inner().
				Match(pipeline.Eq("isPublished", true)).
				Lookup(ownerJoin("ownerId")).
				Stages(),
		}).
		Derive("totalVideos", pipeline.Size("videos")).
		Lookup(ownerJoin("ownerId")).
		Build()
}

func likesJoin(kind models.TargetKind) pipeline.Join {
	return pipeline.Join{
		From:         models.CollectionLikes,
		LocalField:   "id",
		ForeignField: "targetId",
		As:           "likes",
		Pipeline:     pipeline.Inner().Match(pipeline.Eq("targetKind", string(kind))).Stages(),
	}
}
