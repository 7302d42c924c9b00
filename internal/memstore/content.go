package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/repositories"
)

// Videos implements repositories.VideoRepository.
type Videos struct{ s *Store }

func (r *Videos) Create(ctx context.Context, v models.Video) error {
	return insert(ctx, r.s, r.s.videos, v.ID, v)
}

func (r *Videos) FindByID(ctx context.Context, id string) (models.Video, error) {
	return get(ctx, r.s, r.s.videos, id)
}

func (r *Videos) Update(ctx context.Context, v models.Video) error {
	return modify(ctx, r.s, r.s.videos, v.ID, func(cur *models.Video) {
		cur.Title = v.Title
		cur.Description = v.Description
		cur.Thumbnail = v.Thumbnail
		cur.ThumbnailID = v.ThumbnailID
		cur.IsPublished = v.IsPublished
		cur.UpdatedAt = v.UpdatedAt
	})
}

func (r *Videos) Delete(ctx context.Context, id string) error {
	return remove(ctx, r.s, r.s.videos, id)
}

func (r *Videos) IncrementViews(ctx context.Context, id string) error {
	return modify(ctx, r.s, r.s.videos, id, func(cur *models.Video) { cur.Views++ })
}

// Comments implements repositories.CommentRepository.
type Comments struct{ s *Store }

func (r *Comments) Create(ctx context.Context, c models.Comment) error {
	return insert(ctx, r.s, r.s.comments, c.ID, c)
}

func (r *Comments) FindByID(ctx context.Context, id string) (models.Comment, error) {
	return get(ctx, r.s, r.s.comments, id)
}

func (r *Comments) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	return modify(ctx, r.s, r.s.comments, id, func(cur *models.Comment) {
		cur.Content, cur.UpdatedAt = content, at
	})
}

func (r *Comments) Delete(ctx context.Context, id string) error {
	return remove(ctx, r.s, r.s.comments, id)
}

func (r *Comments) IDsByVideo(ctx context.Context, videoID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ids []string
	for id, c := range r.s.comments {
		if c.VideoID == videoID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *Comments) DeleteByVideo(ctx context.Context, videoID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.comments {
		if c.VideoID == videoID {
			delete(r.s.comments, id)
			n++
		}
	}
	return n, nil
}

// Tweets implements repositories.TweetRepository.
type Tweets struct{ s *Store }

func (r *Tweets) Create(ctx context.Context, t models.Tweet) error {
	return insert(ctx, r.s, r.s.tweets, t.ID, t)
}

func (r *Tweets) FindByID(ctx context.Context, id string) (models.Tweet, error) {
	return get(ctx, r.s, r.s.tweets, id)
}

func (r *Tweets) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	return modify(ctx, r.s, r.s.tweets, id, func(cur *models.Tweet) {
		cur.Content, cur.UpdatedAt = content, at
	})
}

func (r *Tweets) Delete(ctx context.Context, id string) error {
	return remove(ctx, r.s, r.s.tweets, id)
}

// Playlists implements repositories.PlaylistRepository.
type Playlists struct{ s *Store }

func (r *Playlists) Create(ctx context.Context, p models.Playlist) error {
	return insert(ctx, r.s, r.s.playlists, p.ID, clonePlaylist(p))
}

func (r *Playlists) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	p, err := get(ctx, r.s, r.s.playlists, id)
	if err != nil {
		return models.Playlist{}, err
	}
	return clonePlaylist(p), nil
}

func (r *Playlists) UpdateDetails(ctx context.Context, id, name, description string, at time.Time) error {
	return modify(ctx, r.s, r.s.playlists, id, func(cur *models.Playlist) {
		cur.Name, cur.Description, cur.UpdatedAt = name, description, at
	})
}

func (r *Playlists) Delete(ctx context.Context, id string) error {
	return remove(ctx, r.s, r.s.playlists, id)
}

func (r *Playlists) AddVideo(ctx context.Context, id, videoID string, at time.Time) error {
	return modify(ctx, r.s, r.s.playlists, id, func(cur *models.Playlist) {
		if !slices.Contains(cur.VideoIDs, videoID) {
			cur.VideoIDs = append(slices.Clone(cur.VideoIDs), videoID)
		}
		cur.UpdatedAt = at
	})
}

func (r *Playlists) RemoveVideo(ctx context.Context, id, videoID string, at time.Time) error {
	return modify(ctx, r.s, r.s.playlists, id, func(cur *models.Playlist) {
		cur.VideoIDs = slices.DeleteFunc(slices.Clone(cur.VideoIDs), func(v string) bool { return v == videoID })
		cur.UpdatedAt = at
	})
}

func insert[T any](ctx context.Context, s *Store, m map[string]T, id string, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := m[id]; ok {
		return repositories.ErrConflict
	}
	m[id] = v
	return nil
}

func get[T any](ctx context.Context, s *Store, m map[string]T, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := m[id]
	if !ok {
		return zero, repositories.ErrNotFound
	}
	return v, nil
}

func modify[T any](ctx context.Context, s *Store, m map[string]T, id string, fn func(*T)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := m[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&v)
	m[id] = v
	return nil
}

func remove[T any](ctx context.Context, s *Store, m map[string]T, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := m[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m, id)
	return nil
}

var (
	_ repositories.VideoRepository    = (*Videos)(nil)
	_ repositories.CommentRepository  = (*Comments)(nil)
	_ repositories.TweetRepository    = (*Tweets)(nil)
	_ repositories.PlaylistRepository = (*Playlists)(nil)
)
