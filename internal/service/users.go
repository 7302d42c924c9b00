package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vidstream/backend/internal/apperr"
	"github.com/vidstream/backend/internal/logging"
	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/paginate"
	"github.com/vidstream/backend/internal/pipeline"
	"github.com/vidstream/backend/internal/repositories"
	"github.com/vidstream/backend/internal/storage"
)

// RegisterInput is a registration request. The image paths point at uploaded
// temporary files.
type RegisterInput struct {
	FullName       string `json:"fullName" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Username       string `json:"username" validate:"required,alphanum,min=3,max=30"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	AvatarPath     string `json:"avatar" validate:"required"`
	CoverImagePath string `json:"coverImage"`
}

// ChangePasswordInput replaces the caller's password.
type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72,nefield=OldPassword"`
}

// UpdateAccountInput changes profile details. At least one field is required.
type UpdateAccountInput struct {
	FullName string `json:"fullName" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// UserService manages accounts and channel read models.
type UserService struct {
	*base
}

// Register creates an account after uploading its images. Uploaded images are
// deleted again when a later step fails.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	if err := s.validator.Struct(in); err != nil {
		return models.User{}, err
	}

	logger := logging.FromContext(ctx).With("username", in.Username)
	if _, err := s.deps.Users.FindByLogin(ctx, in.Username, in.Email); err == nil {
		return models.User{}, apperr.Conflict("user with email or username already exists")
	} else if !isNotFound(err) {
		return models.User{}, translate(err, "user")
	}

	avatar, err := s.store(ctx, in.AvatarPath, storage.KindImage, "avatar")
	if err != nil {
		logger.Error("upload avatar", "error", err)
		return models.User{}, err
	}
	var cover storage.Asset
	if in.CoverImagePath != "" {
		cover, err = s.store(ctx, in.CoverImagePath, storage.KindImage, "cover image")
		if err != nil {
			logger.Error("upload cover image", "error", err)
			return models.User{}, s.compensate(ctx, err, avatar)
		}
	}

	digest, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, s.compensate(ctx, apperr.Internal("hash password", err), avatar, cover)
	}

	now := s.now()
	user := models.User{
		ID:           newID(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Password:     digest,
		Avatar:       avatar.URL,
		AvatarID:     avatar.PublicID,
		CoverImage:   cover.URL,
		CoverImageID: cover.PublicID,
		WatchHistory: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.deps.Users.Create(ctx, user); err != nil {
		logger.Warn("create user", "error", err)
		return models.User{}, s.compensate(ctx, translate(err, "user"), avatar, cover)
	}
	logger.Info("user registered", "userId", user.ID)
	return user, nil
}

// CurrentUser returns the caller's account.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (models.User, error) {
	user, err := s.deps.Users.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, translate(err, "user")
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the old one.
func (s *UserService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if err := s.validator.Struct(in); err != nil {
		return err
	}
	user, err := s.deps.Users.FindByID(ctx, userID)
	if err != nil {
		return translate(err, "user")
	}
	if !s.deps.Hasher.Verify(user.Password, in.OldPassword) {
		return apperr.Validation("invalid old password")
	}
	digest, err := s.deps.Hasher.Hash(in.NewPassword)
	if err != nil {
		return apperr.Internal("hash password", err)
	}
	if err := s.deps.Users.UpdatePassword(ctx, userID, digest, s.now()); err != nil {
		return translate(err, "user")
	}
	return nil
}

// UpdateAccount changes the full name and/or email.
func (s *UserService) UpdateAccount(ctx context.Context, userID string, in UpdateAccountInput) (models.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FullName == "" && in.Email == "" {
		return models.User{}, apperr.Validation("fullName or email is required")
	}
	if err := s.validator.Struct(in); err != nil {
		return models.User{}, err
	}

	current, err := s.deps.Users.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, translate(err, "user")
	}
	if in.FullName == "" {
		in.FullName = current.FullName
	}
	if in.Email == "" {
		in.Email = current.Email
	}
	user, err := s.deps.Users.UpdateAccount(ctx, userID, in.FullName, in.Email, s.now())
	if err != nil {
		if isConflict(err) {
			return models.User{}, apperr.Conflict("email is already in use")
		}
		return models.User{}, translate(err, "user")
	}
	return user, nil
}

// UpdateAvatar replaces the avatar. The previous image is removed after the
// new one is saved.
func (s *UserService) UpdateAvatar(ctx context.Context, userID, path string) (models.User, error) {
	return s.replaceImage(ctx, userID, path, "avatar",
		func(u models.User) string { return u.AvatarID },
		s.deps.Users.UpdateAvatar)
}

// UpdateCoverImage replaces the cover image.
func (s *UserService) UpdateCoverImage(ctx context.Context, userID, path string) (models.User, error) {
	return s.replaceImage(ctx, userID, path, "cover image",
		func(u models.User) string { return u.CoverImageID },
		s.deps.Users.UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, id, url, publicID string, at time.Time) error

func (s *UserService) replaceImage(ctx context.Context, userID, path, what string, previous func(models.User) string, update imageUpdater) (models.User, error) {
	if path == "" {
		return models.User{}, apperr.ValidationFields(what+" file is missing", map[string]string{what: "is required"})
	}
	user, err := s.deps.Users.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, translate(err, "user")
	}

	asset, err := s.store(ctx, path, storage.KindImage, what)
	if err != nil {
		logging.FromContext(ctx).Error("upload "+what, "userId", userID, "error", err)
		return models.User{}, err
	}
	if err := update(ctx, userID, asset.URL, asset.PublicID, s.now()); err != nil {
		return models.User{}, s.compensate(ctx, translate(err, "user"), asset)
	}
	if old := previous(user); old != "" {
		s.reap(ctx, storage.Asset{PublicID: old, Kind: storage.KindImage})
	}
	return s.CurrentUser(ctx, userID)
}

// ChannelProfile returns the public channel view of username. viewer may be
// empty for anonymous callers.
func (s *UserService) ChannelProfile(ctx context.Context, username, viewer string) (pipeline.Record, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, apperr.Validation("username is missing")
	}
	return s.one(ctx, channelProfilePipeline(username, viewer), "channel")
}

// WatchHistory returns the caller's watched videos, most recent first.
func (s *UserService) WatchHistory(ctx context.Context, userID string, req paginate.Request) (paginate.Page[pipeline.Record], error) {
	return s.page(ctx, watchHistoryPipeline(userID), req)
}

func isNotFound(err error) bool { return errors.Is(err, repositories.ErrNotFound) }

func isConflict(err error) bool { return errors.Is(err, repositories.ErrConflict) }
