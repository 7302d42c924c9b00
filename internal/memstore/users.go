package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/vidstream/backend/internal/models"
	"github.com/vidstream/backend/internal/repositories"
)

// Users implements repositories.UserRepository and auth.CredentialStore.
type Users struct{ s *Store }

func (r *Users) Create(ctx context.Context, user models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.ID]; ok {
		return repositories.ErrConflict
	}
	for _, existing := range r.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *Users) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.find(ctx, func(u models.User) bool { return u.ID == id })
}

func (r *Users) FindByLogin(ctx context.Context, username, email string) (models.User, error) {
	return r.find(ctx, func(u models.User) bool {
		return (username != "" && u.Username == username) || (email != "" && u.Email == email)
	})
}

func (r *Users) find(ctx context.Context, match func(models.User) bool) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (r *Users) UpdateAccount(ctx context.Context, id, fullName, email string, at time.Time) (models.User, error) {
	var out models.User
	err := r.update(ctx, id, func(u *models.User) error {
		for _, other := range r.s.users {
			if other.ID != id && other.Email == email {
				return repositories.ErrConflict
			}
		}
		u.FullName = fullName
		u.Email = email
		u.UpdatedAt = at
		out = cloneUser(*u)
		return nil
	})
	return out, err
}

func (r *Users) UpdateAvatar(ctx context.Context, id, url, publicID string, at time.Time) error {
	return r.update(ctx, id, func(u *models.User) error {
		u.Avatar, u.AvatarID, u.UpdatedAt = url, publicID, at
		return nil
	})
}

func (r *Users) UpdateCoverImage(ctx context.Context, id, url, publicID string, at time.Time) error {
	return r.update(ctx, id, func(u *models.User) error {
		u.CoverImage, u.CoverImageID, u.UpdatedAt = url, publicID, at
		return nil
	})
}

func (r *Users) UpdatePassword(ctx context.Context, id, digest string, at time.Time) error {
	return r.update(ctx, id, func(u *models.User) error {
		u.Password, u.UpdatedAt = digest, at
		return nil
	})
}

func (r *Users) AddToWatchHistory(ctx context.Context, userID, videoID string) error {
	return r.update(ctx, userID, func(u *models.User) error {
		history := slices.DeleteFunc(slices.Clone(u.WatchHistory), func(id string) bool { return id == videoID })
		u.WatchHistory = append([]string{videoID}, history...)
		return nil
	})
}

func (r *Users) SetRefreshToken(ctx context.Context, userID, token string) error {
	return r.update(ctx, userID, func(u *models.User) error {
		u.RefreshToken = token
		u.SessionEndedAt = nil
		return nil
	})
}

func (r *Users) SwapRefreshToken(ctx context.Context, userID, expected, next string) (bool, error) {
	swapped := false
	err := r.update(ctx, userID, func(u *models.User) error {
		if u.RefreshToken == expected {
			u.RefreshToken = next
			swapped = true
		}
		return nil
	})
	return swapped, err
}

func (r *Users) ClearRefreshToken(ctx context.Context, userID string, endedAt time.Time) error {
	return r.update(ctx, userID, func(u *models.User) error {
		u.RefreshToken = ""
		t := endedAt.UTC()
		u.SessionEndedAt = &t
		return nil
	})
}

func (r *Users) update(ctx context.Context, id string, fn func(*models.User) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u = cloneUser(u)
	if err := fn(&u); err != nil {
		return err
	}
	r.s.users[id] = u
	return nil
}

var _ repositories.UserRepository = (*Users)(nil)
