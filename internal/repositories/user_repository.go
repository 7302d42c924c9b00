package repositories

import (
	"context"
	"time"

	"github.com/vidstream/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	// FindByLogin matches on username or email, whichever is non-empty.
	FindByLogin(ctx context.Context, username, email string) (models.User, error)
	UpdateAccount(ctx context.Context, id, fullName, email string, at time.Time) (models.User, error)
	UpdateAvatar(ctx context.Context, id, url, publicID string, at time.Time) error
	UpdateCoverImage(ctx context.Context, id, url, publicID string, at time.Time) error
	UpdatePassword(ctx context.Context, id, digest string, at time.Time) error
	// AddToWatchHistory moves videoID to the front of the user's history.
	AddToWatchHistory(ctx context.Context, userID, videoID string) error

	SetRefreshToken(ctx context.Context, userID, token string) error
	SwapRefreshToken(ctx context.Context, userID, expected, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, userID string, endedAt time.Time) error
}
