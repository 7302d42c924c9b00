package service

import (
	"context"
	"strings"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/ownership"
	"github.com/vidstream/backend/internal/paginate"
	"github.com/vidstream/backend/internal/pipeline"
)

// PlaylistInput names and describes a playlist.
type PlaylistInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=1000"`
}

// PlaylistUpdate changes playlist details. At least one field is required.
type PlaylistUpdate struct {
	Name        string `json:"name" validate:"max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// PlaylistService manages playlists.
type PlaylistService struct {
	*base
}

func (s *PlaylistService) Create(ctx context.Context, actor string, in PlaylistInput) (models.Playlist, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validator.Struct(in); err != nil {
		return models.Playlist{}, err
	}
	if err := s.requireUser(ctx, actor); err != nil {
		return models.Playlist{}, err
	}
	now := s.now()
	playlist := models.Playlist{
		ID:          newID(),
		OwnerID:     actor,
		Name:        in.Name,
		Description: in.Description,
		VideoIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.deps.Playlists.Create(ctx, playlist); err != nil {
		return models.Playlist{}, translate(err, "playlist")
	}
	return playlist, nil
}

// Get returns the playlist with its published videos in playlist order.
func (s *PlaylistService) Get(ctx context.Context, playlistID string) (pipeline.Record, error) {
	return s.one(ctx, playlistDetailPipeline(playlistID), "playlist")
}

// ListByUser returns userID's playlists, newest first.
func (s *PlaylistService) ListByUser(ctx context.Context, userID string, req paginate.Request) (paginate.Page[pipeline.Record], error) {
	if _, err := s.deps.Users.FindByID(ctx, userID); err != nil {
		return paginate.Page[pipeline.Record]{}, translate(err, "user")
	}
	return s.page(ctx, playlistListingPipeline(userID), req)
}

// AddVideo appends videoID to actor's playlist. Adding a video twice is a no-op.
func (s *PlaylistService) AddVideo(ctx context.Context, actor, playlistID, videoID string) (models.Playlist, error) {
	if _, err := s.owned(ctx, actor, playlistID, "change this playlist"); err != nil {
		return models.Playlist{}, err
	}
	if _, err := s.deps.Videos.FindByID(ctx, videoID); err != nil {
		return models.Playlist{}, translate(err, "video")
	}
	if err := s.deps.Playlists.AddVideo(ctx, playlistID, videoID, s.now()); err != nil {
		return models.Playlist{}, translate(err, "playlist")
	}
	return s.reload(ctx, playlistID)
}

// RemoveVideo drops videoID from actor's playlist. The video itself need not
// exist any more.
func (s *PlaylistService) RemoveVideo(ctx context.Context, actor, playlistID, videoID string) (models.Playlist, error) {
	if _, err := s.owned(ctx, actor, playlistID, "change this playlist"); err != nil {
		return models.Playlist{}, err
	}
	if err := s.deps.Playlists.RemoveVideo(ctx, playlistID, videoID, s.now()); err != nil {
		return models.Playlist{}, translate(err, "playlist")
	}
	return s.reload(ctx, playlistID)
}

func (s *PlaylistService) Update(ctx context.Context, actor, playlistID string, in PlaylistUpdate) (models.Playlist, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" && in.Description == "" {
		return models.Playlist{}, apperr.Validation("name or description is required")
	}
	if err := s.validator.Struct(in); err != nil {
		return models.Playlist{}, err
	}
	playlist, err := s.owned(ctx, actor, playlistID, "update this playlist")
	if err != nil {
		return models.Playlist{}, err
	}
	if in.Name != "" {
		playlist.Name = in.Name
	}
	if in.Description != "" {
		playlist.Description = in.Description
	}
	playlist.UpdatedAt = s.now()
	if err := s.deps.Playlists.UpdateDetails(ctx, playlistID, playlist.Name, playlist.Description, playlist.UpdatedAt); err != nil {
		return models.Playlist{}, translate(err, "playlist")
	}
	return playlist, nil
}

func (s *PlaylistService) Delete(ctx context.Context, actor, playlistID string) error {
	if _, err := s.owned(ctx, actor, playlistID, "delete this playlist"); err != nil {
		return err
	}
	return translate(s.deps.Playlists.Delete(ctx, playlistID), "playlist")
}

func (s *PlaylistService) owned(ctx context.Context, actor, playlistID, action string) (models.Playlist, error) {
	playlist, err := s.deps.Playlists.FindByID(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, translate(err, "playlist")
	}
	if err := ownership.Require(actor, playlist, nil, action); err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

func (s *PlaylistService) reload(ctx context.Context, playlistID string) (models.Playlist, error) {
	playlist, err := s.deps.Playlists.FindByID(ctx, playlistID)
	if err != nil {
		return models.Playlist{}, translate(err, "playlist")
	}
	return playlist, nil
}
