package memstore

import (
	"context"
	"slices"

	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/repositories"
)

// Likes implements repositories.LikeRepository with a unique (likedBy, target) key.
type Likes struct{ s *Store }

func (r *Likes) FindLike(ctx context.Context, likedBy string, target models.LikeTarget) (models.Like, error) {
	if err := ctx.Err(); err != nil {
		return models.Like{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, l := range r.s.likes {
		if l.LikedBy == likedBy && l.Target == target {
			return l, nil
		}
	}
	return models.Like{}, repositories.ErrNotFound
}

func (r *Likes) CreateLike(ctx context.Context, like models.Like) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.likes[like.ID]; ok {
		return repositories.ErrConflict
	}
	for _, l := range r.s.likes {
		if l.LikedBy == like.LikedBy && l.Target == like.Target {
			return repositories.ErrConflict
		}
	}
	r.s.likes[like.ID] = like
	return nil
}

func (r *Likes) DeleteLike(ctx context.Context, id string) error {
	return remove(ctx, r.s, r.s.likes, id)
}

func (r *Likes) DeleteByTargets(ctx context.Context, kind models.TargetKind, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, l := range r.s.likes {
		if l.Target.Kind == kind && slices.Contains(ids, l.Target.ID) {
			delete(r.s.likes, id)
			n++
		}
	}
	return n, nil
}

// Subscriptions implements repositories.SubscriptionRepository with a unique
// (subscriber, channel) key.
type Subscriptions struct{ s *Store }

func (r *Subscriptions) FindSubscription(ctx context.Context, subscriberID, channelID string) (models.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return models.Subscription{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sub := range r.s.subs {
		if sub.SubscriberID == subscriberID && sub.ChannelID == channelID {
			return sub, nil
		}
	}
	return models.Subscription{}, repositories.ErrNotFound
}

func (r *Subscriptions) CreateSubscription(ctx context.Context, sub models.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.subs[sub.ID]; ok {
		return repositories.ErrConflict
	}
	for _, existing := range r.s.subs {
		if existing.SubscriberID == sub.SubscriberID && existing.ChannelID == sub.ChannelID {
			return repositories.ErrConflict
		}
	}
	r.s.subs[sub.ID] = sub
	return nil
}

func (r *Subscriptions) DeleteSubscription(ctx context.Context, id string) error {
	return remove(ctx, r.s, r.s.subs, id)
}

var (
	_ repositories.LikeRepository         = (*Likes)(nil)
	_ repositories.SubscriptionRepository = (*Subscriptions)(nil)
)
