package service

import (
	"context"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/paginate"
	"github.com/vidstream/backend/internal/pipeline"
	"github.com/vidstream/backend/internal/toggle"
)

// SubscriptionStatus is the outcome of a subscription toggle.
type SubscriptionStatus struct {
	ChannelID  string `json:"channelId"`
	Subscribed bool   `json:"subscribed"`
}

// SubscriptionService manages channel subscriptions.
type SubscriptionService struct {
	*base
	engine *toggle.Engine
}

// Toggle subscribes actor to channelID, or unsubscribes when already subscribed.
func (s *SubscriptionService) Toggle(ctx context.Context, actor, channelID string) (SubscriptionStatus, error) {
	if channelID == "" {
		return SubscriptionStatus{}, apperr.Validation("channel id is required")
	}
	if actor == channelID {
		return SubscriptionStatus{}, apperr.Validation("cannot subscribe to your own channel")
	}
	if err := s.requireUser(ctx, actor); err != nil {
		return SubscriptionStatus{}, err
	}
	if _, err := s.deps.Users.FindByID(ctx, channelID); err != nil {
		return SubscriptionStatus{}, translate(err, "channel")
	}

	res, err := s.engine.Toggle(ctx, toggle.Key{Actor: actor, Kind: channelKind, Target: channelID})
	if err != nil {
		return SubscriptionStatus{}, translate(err, "subscription")
	}
	return SubscriptionStatus{ChannelID: channelID, Subscribed: res.Active}, nil
}

// Subscribers lists the users subscribed to channelID.
func (s *SubscriptionService) Subscribers(ctx context.Context, channelID string, req paginate.Request) (paginate.Page[pipeline.Record], error) {
	if _, err := s.deps.Users.FindByID(ctx, channelID); err != nil {
		return paginate.Page[pipeline.Record]{}, translate(err, "channel")
	}
	return s.page(ctx, channelSubscribersPipeline(channelID), req)
}

// SubscribedChannels lists the channels subscriberID follows with each
// channel's latest published video.
func (s *SubscriptionService) SubscribedChannels(ctx context.Context, subscriberID string, req paginate.Request) (paginate.Page[pipeline.Record], error) {
	if _, err := s.deps.Users.FindByID(ctx, subscriberID); err != nil {
		return paginate.Page[pipeline.Record]{}, translate(err, "user")
	}
	return s.page(ctx, subscribedChannelsPipeline(subscriberID), req)
}
