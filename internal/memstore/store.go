// Package memstore keeps every collection in process memory. It backs the
// "memory" database mode and the service tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/pipeline"
)

// Store holds all collections behind one lock.
type Store struct {
	mu        sync.RWMutex
	users     map[string]models.User
	videos    map[string]models.Video
	comments  map[string]models.Comment
	tweets    map[string]models.Tweet
	likes     map[string]models.Like
	subs      map[string]models.Subscription
	playlists map[string]models.Playlist
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:     make(map[string]models.User),
		videos:    make(map[string]models.Video),
		comments:  make(map[string]models.Comment),
		tweets:    make(map[string]models.Tweet),
		likes:     make(map[string]models.Like),
		subs:      make(map[string]models.Subscription),
		playlists: make(map[string]models.Playlist),
	}
}

func (s *Store) Users() *Users                 { return &Users{s: s} }
func (s *Store) Videos() *Videos               { return &Videos{s: s} }
func (s *Store) Comments() *Comments           { return &Comments{s: s} }
func (s *Store) Tweets() *Tweets               { return &Tweets{s: s} }
func (s *Store) Playlists() *Playlists         { return &Playlists{s: s} }
func (s *Store) Likes() *Likes                 { return &Likes{s: s} }
func (s *Store) Subscriptions() *Subscriptions { return &Subscriptions{s: s} }

// Scan implements pipeline.Source. Records come back oldest first.
func (s *Store) Scan(ctx context.Context, collection string, filter []pipeline.Predicate) ([]pipeline.Record, error) {
	records, err := s.records(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if pipeline.MatchesAll(r, filter) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Lookup implements pipeline.Source.
func (s *Store) Lookup(ctx context.Context, collection, field string, values []any) ([]pipeline.Record, error) {
	records, err := s.records(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, r := range records {
		if pipeline.HasAny(r, field, values) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) records(ctx context.Context, collection string) ([]pipeline.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []pipeline.Record
	switch collection {
	case models.CollectionUsers:
		out = collect(s.users, userRecord)
	case models.CollectionVideos:
		out = collect(s.videos, videoRecord)
	case models.CollectionComments:
		out = collect(s.comments, commentRecord)
	case models.CollectionTweets:
		out = collect(s.tweets, tweetRecord)
	case models.CollectionLikes:
		out = collect(s.likes, likeRecord)
	case models.CollectionSubscriptions:
		out = collect(s.subs, subscriptionRecord)
	case models.CollectionPlaylists:
		out = collect(s.playlists, playlistRecord)
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := out[i]["createdAt"].(time.Time)
		tj, _ := out[j]["createdAt"].(time.Time)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i]["id"].(string) < out[j]["id"].(string)
	})
	return out, nil
}

func collect[T any](m map[string]T, toRecord func(T) pipeline.Record) []pipeline.Record {
	out := make([]pipeline.Record, 0, len(m))
	for _, v := range m {
		out = append(out, toRecord(v))
	}
	return out
}

func stringList(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func userRecord(u models.User) pipeline.Record {
	return pipeline.Record{
		"id":           u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"fullName":     u.FullName,
		"avatar":       u.Avatar,
		"coverImage":   u.CoverImage,
		"watchHistory": stringList(u.WatchHistory),
		"createdAt":    u.CreatedAt,
		"updatedAt":    u.UpdatedAt,
	}
}

func videoRecord(v models.Video) pipeline.Record {
	return pipeline.Record{
		"id":          v.ID,
		"ownerId":     v.OwnerID,
		"videoFile":   v.VideoFile,
		"thumbnail":   v.Thumbnail,
		"title":       v.Title,
		"description": v.Description,
		"duration":    v.Duration,
		"views":       v.Views,
		"isPublished": v.IsPublished,
		"createdAt":   v.CreatedAt,
		"updatedAt":   v.UpdatedAt,
	}
}

func commentRecord(c models.Comment) pipeline.Record {
	return pipeline.Record{
		"id":        c.ID,
		"videoId":   c.VideoID,
		"ownerId":   c.OwnerID,
		"content":   c.Content,
		"createdAt": c.CreatedAt,
		"updatedAt": c.UpdatedAt,
	}
}

func tweetRecord(t models.Tweet) pipeline.Record {
	return pipeline.Record{
		"id":        t.ID,
		"ownerId":   t.OwnerID,
		"content":   t.Content,
		"createdAt": t.CreatedAt,
		"updatedAt": t.UpdatedAt,
	}
}

func likeRecord(l models.Like) pipeline.Record {
	return pipeline.Record{
		"id":         l.ID,
		"likedBy":    l.LikedBy,
		"targetKind": string(l.Target.Kind),
		"targetId":   l.Target.ID,
		"createdAt":  l.CreatedAt,
	}
}

func subscriptionRecord(sub models.Subscription) pipeline.Record {
	return pipeline.Record{
		"id":           sub.ID,
		"subscriberId": sub.SubscriberID,
		"channelId":    sub.ChannelID,
		"createdAt":    sub.CreatedAt,
	}
}

func playlistRecord(p models.Playlist) pipeline.Record {
	return pipeline.Record{
		"id":          p.ID,
		"ownerId":     p.OwnerID,
		"name":        p.Name,
		"description": p.Description,
		"videos":      stringList(p.VideoIDs),
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
}

func cloneUser(u models.User) models.User {
	u.WatchHistory = slices.Clone(u.WatchHistory)
	if u.WatchHistory == nil {
		u.WatchHistory = []string{}
	}
	if u.SessionEndedAt != nil {
		t := *u.SessionEndedAt
		u.SessionEndedAt = &t
	}
	return u
}

func clonePlaylist(p models.Playlist) models.Playlist {
	p.VideoIDs = slices.Clone(p.VideoIDs)
	if p.VideoIDs == nil {
		p.VideoIDs = []string{}
	}
	return p
}
