package cascade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/models"
)

type fakeStore struct {
	likes    []models.Like
	comments []models.Comment
	failOn   models.TargetKind
}

func (s *fakeStore) DeleteByTargets(_ context.Context, kind models.TargetKind, ids []string) (int64, error) {
	if kind == s.failOn {
		return 0, errors.New("store timeout")
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var kept []models.Like
	var removed int64
	for _, l := range s.likes {
		if l.Target.Kind == kind && wanted[l.Target.ID] {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	s.likes = kept
	return removed, nil
}

func (s *fakeStore) IDsByVideo(_ context.Context, videoID string) ([]string, error) {
	var ids []string
	for _, c := range s.comments {
		if c.VideoID == videoID {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *fakeStore) DeleteByVideo(_ context.Context, videoID string) (int64, error) {
	var kept []models.Comment
	var removed int64
	for _, c := range s.comments {
		if c.VideoID == videoID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.comments = kept
	return removed, nil
}

func like(kind models.TargetKind, id string) models.Like {
	return models.Like{LikedBy: "someone", Target: models.LikeTarget{Kind: kind, ID: id}}
}

func TestOnDeleteTweetRemovesAllLikesAndIsIdempotent(t *testing.T) {
	store := &fakeStore{likes: []models.Like{
		like(models.TargetTweet, "t1"),
		like(models.TargetTweet, "t1"),
		like(models.TargetTweet, "t1"),
		like(models.TargetTweet, "t2"),
		like(models.TargetVideo, "t1"),
	}}
	c := NewCoordinator(store, store, nil)

	require.NoError(t, c.OnDelete(context.Background(), models.TargetTweet, "t1"))
	assert.Len(t, store.likes, 2)

	require.NoError(t, c.OnDelete(context.Background(), models.TargetTweet, "t1"))
	assert.Len(t, store.likes, 2)
}

func TestOnDeleteVideoRemovesCommentsAndTheirLikes(t *testing.T) {
	store := &fakeStore{
		likes: []models.Like{
			like(models.TargetVideo, "v1"),
			like(models.TargetComment, "c1"),
			like(models.TargetComment, "c2"),
			like(models.TargetComment, "c3"),
		},
		comments: []models.Comment{
			{ID: "c1", VideoID: "v1"},
			{ID: "c2", VideoID: "v1"},
			{ID: "c3", VideoID: "v2"},
		},
	}
	c := NewCoordinator(store, store, nil)

	require.NoError(t, c.OnDelete(context.Background(), models.TargetVideo, "v1"))

	require.Len(t, store.comments, 1)
	assert.Equal(t, "c3", store.comments[0].ID)
	require.Len(t, store.likes, 1)
	assert.Equal(t, "c3", store.likes[0].Target.ID)
}

func TestOnDeleteReportsPartialFailure(t *testing.T) {
	store := &fakeStore{
		likes:    []models.Like{like(models.TargetComment, "c1")},
		comments: []models.Comment{{ID: "c1", VideoID: "v1"}},
		failOn:   models.TargetComment,
	}
	var failed []models.TargetKind
	c := NewCoordinator(store, store, func(kind models.TargetKind) { failed = append(failed, kind) })

	err := c.OnDelete(context.Background(), models.TargetVideo, "v1")
	assert.ErrorIs(t, err, apperr.ErrPartialFailure)
	assert.Equal(t, []models.TargetKind{models.TargetVideo}, failed)

	// Comments stay until their likes are gone so a retry can finish the job.
	assert.Len(t, store.comments, 1)

	store.failOn = ""
	require.NoError(t, c.OnDelete(context.Background(), models.TargetVideo, "v1"))
	assert.Empty(t, store.comments)
	assert.Empty(t, store.likes)
}
