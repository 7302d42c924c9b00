package service

import (
	"context"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/paginate"
	"github.com/vidstream/backend/internal/pipeline"
	"github.com/vidstream/backend/internal/toggle"
)

// LikeStatus is the outcome of a like toggle.
type LikeStatus struct {
	Target models.LikeTarget `json:"target"`
	Liked  bool              `json:"liked"`
}

// LikeService toggles likes and lists liked videos.
type LikeService struct {
	*base
	engine *toggle.Engine
}

// Toggle likes target for actor, or removes the like when it already exists.
func (s *LikeService) Toggle(ctx context.Context, actor string, target models.LikeTarget) (LikeStatus, error) {
	if !target.Kind.Valid() {
		return LikeStatus{}, apperr.Validation("unknown like target")
	}
	if target.ID == "" {
		return LikeStatus{}, apperr.Validation(string(target.Kind) + " id is required")
	}
	if err := s.requireUser(ctx, actor); err != nil {
		return LikeStatus{}, err
	}
	if err := s.targetExists(ctx, target); err != nil {
		return LikeStatus{}, err
	}

	res, err := s.engine.Toggle(ctx, toggle.Key{Actor: actor, Kind: string(target.Kind), Target: target.ID})
	if err != nil {
		return LikeStatus{}, translate(err, "like")
	}
	return LikeStatus{Target: target, Liked: res.Active}, nil
}

func (s *LikeService) targetExists(ctx context.Context, target models.LikeTarget) error {
	var err error
	switch target.Kind {
	case models.TargetVideo:
		_, err = s.deps.Videos.FindByID(ctx, target.ID)
	case models.TargetComment:
		_, err = s.deps.Comments.FindByID(ctx, target.ID)
	case models.TargetTweet:
		_, err = s.deps.Tweets.FindByID(ctx, target.ID)
	}
	return translate(err, string(target.Kind))
}

// LikedVideos returns the videos actor liked, most recently liked first.
func (s *LikeService) LikedVideos(ctx context.Context, actor string, req paginate.Request) (paginate.Page[pipeline.Record], error) {
	return s.page(ctx, likedVideosPipeline(actor), req)
}
