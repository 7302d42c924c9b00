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
)

// TweetService manages short text posts.
type TweetService struct {
	*base
	cascade *cascade.Coordinator
}

func (s *TweetService) Create(ctx context.Context, actor string, in ContentInput) (models.Tweet, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := s.validator.Struct(in); err != nil {
		return models.Tweet{}, err
	}
	if err := s.requireUser(ctx, actor); err != nil {
		return models.Tweet{}, err
	}
	now := s.now()
	tweet := models.Tweet{
		ID:        newID(),
		OwnerID:   actor,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.Tweets.Create(ctx, tweet); err != nil {
		return models.Tweet{}, translate(err, "tweet")
	}
	return tweet, nil
}

// ListByUser returns userID's tweets, newest first.
func (s *TweetService) ListByUser(ctx context.Context, userID, viewer string, req paginate.Request) (paginate.Page[pipeline.Record], error) {
	if strings.TrimSpace(userID) == "" {
		return paginate.Page[pipeline.Record]{}, apperr.Validation("userId is required")
	}
	if _, err := s.deps.Users.FindByID(ctx, userID); err != nil {
		return paginate.Page[pipeline.Record]{}, translate(err, "user")
	}
	return s.page(ctx, tweetListingPipeline(userID, viewer), req)
}

func (s *TweetService) Update(ctx context.Context, actor, tweetID string, in ContentInput) (models.Tweet, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := s.validator.Struct(in); err != nil {
		return models.Tweet{}, err
	}
	tweet, err := s.deps.Tweets.FindByID(ctx, tweetID)
	if err != nil {
		return models.Tweet{}, translate(err, "tweet")
	}
	if err := ownership.Require(actor, tweet, nil, "edit this tweet"); err != nil {
		return models.Tweet{}, err
	}
	tweet.Content, tweet.UpdatedAt = in.Content, s.now()
	if err := s.deps.Tweets.UpdateContent(ctx, tweetID, tweet.Content, tweet.UpdatedAt); err != nil {
		return models.Tweet{}, translate(err, "tweet")
	}
	return tweet, nil
}

// Delete removes actor's tweet and the likes on it.
func (s *TweetService) Delete(ctx context.Context, actor, tweetID string) error {
	tweet, err := s.deps.Tweets.FindByID(ctx, tweetID)
	if err != nil {
		return translate(err, "tweet")
	}
	if err := ownership.Require(actor, tweet, nil, "delete this tweet"); err != nil {
		return err
	}
	if err := s.deps.Tweets.Delete(ctx, tweetID); err != nil {
		return translate(err, "tweet")
	}
	if err := s.cascade.OnDelete(ctx, models.TargetTweet, tweetID); err != nil {
		logging.FromContext(ctx).Error("tweet likes left behind", "tweetId", tweetID, "error", err)
		return err
	}
	return nil
}
