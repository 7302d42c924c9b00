package service

import (
	"context"

	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/repositories"
	"github.com/vidstream/backend/internal/toggle"
)

// channelKind scopes subscription toggles.
const channelKind = "channel"

// likeRelations exposes the like repository as a toggle.Store.
type likeRelations struct {
	repo repositories.LikeRepository
}

func (r likeRelations) Find(ctx context.Context, key toggle.Key) (toggle.Relation, error) {
	like, err := r.repo.FindLike(ctx, key.Actor, models.LikeTarget{Kind: models.TargetKind(key.Kind), ID: key.Target})
	if err != nil {
		return toggle.Relation{}, err
	}
	return toggle.Relation{
		ID:        like.ID,
		Actor:     like.LikedBy,
		Kind:      string(like.Target.Kind),
		Target:    like.Target.ID,
		CreatedAt: like.CreatedAt,
	}, nil
}

func (r likeRelations) Create(ctx context.Context, rel toggle.Relation) error {
	return r.repo.CreateLike(ctx, models.Like{
		ID:        rel.ID,
		LikedBy:   rel.Actor,
		Target:    models.LikeTarget{Kind: models.TargetKind(rel.Kind), ID: rel.Target},
		CreatedAt: rel.CreatedAt,
	})
}

func (r likeRelations) Delete(ctx context.Context, id string) error {
	return r.repo.DeleteLike(ctx, id)
}

// subscriptionRelations exposes the subscription repository as a toggle.Store.
type subscriptionRelations struct {
	repo repositories.SubscriptionRepository
}

func (r subscriptionRelations) Find(ctx context.Context, key toggle.Key) (toggle.Relation, error) {
	sub, err := r.repo.FindSubscription(ctx, key.Actor, key.Target)
	if err != nil {
		return toggle.Relation{}, err
	}
	return toggle.Relation{
		ID:        sub.ID,
		Actor:     sub.SubscriberID,
		Kind:      channelKind,
		Target:    sub.ChannelID,
		CreatedAt: sub.CreatedAt,
	}, nil
}

func (r subscriptionRelations) Create(ctx context.Context, rel toggle.Relation) error {
	return r.repo.CreateSubscription(ctx, models.Subscription{
		ID:           rel.ID,
		SubscriberID: rel.Actor,
		ChannelID:    rel.Target,
		CreatedAt:    rel.CreatedAt,
	})
}

func (r subscriptionRelations) Delete(ctx context.Context, id string) error {
	return r.repo.DeleteSubscription(ctx, id)
}
