package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidstream/backend/internal/db"
	"github.com/vidstream/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, username, email, full_name, password_hash, avatar, avatar_id,
        cover_image, cover_image_id, COALESCE(watch_history, '{}'), refresh_token, session_ended_at,
        created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user    models.User
		ended   sql.NullTime
		refresh sql.NullString
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Password, &user.Avatar, &user.AvatarID,
		&user.CoverImage, &user.CoverImageID, &user.WatchHistory, &refresh, &ended,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}
	user.RefreshToken = refresh.String
	if ended.Valid {
		t := ended.Time.UTC()
		user.SessionEndedAt = &t
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	history := user.WatchHistory
	if history == nil {
		history = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, password_hash, avatar, avatar_id,
                           cover_image, cover_image_id, watch_history, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, user.ID, user.Username, user.Email, user.FullName, user.Password, user.Avatar, user.AvatarID,
		user.CoverImage, user.CoverImageID, history, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return classify(err, "insert user")
	}

	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "select user by id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByLogin fetches a user by username or email.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, username, email string) (models.User, error) {
	return r.findOne(ctx, "select user by login", `
        SELECT `+userColumns+`
        FROM users
        WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
        ORDER BY created_at
        LIMIT 1
    `, username, email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, op, query string, args ...any) (models.User, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.User{}, err
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, classify(err, op)
	}
	return user, nil
}

// UpdateAccount changes the display name and email, returning the stored user.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string, at time.Time) (models.User, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.User{}, err
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, `
        UPDATE users
        SET full_name = $2, email = $3, updated_at = $4
        WHERE id = $1
        RETURNING `+userColumns, id, fullName, email, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, classify(err, "update user account")
	}
	return user, nil
}

// UpdateAvatar replaces the avatar reference.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id, url, publicID string, at time.Time) error {
	return execAffecting(ctx, r.pool, "update user avatar", `
        UPDATE users SET avatar = $2, avatar_id = $3, updated_at = $4 WHERE id = $1
    `, id, url, publicID, at)
}

// UpdateCoverImage replaces the cover image reference.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, id, url, publicID string, at time.Time) error {
	return execAffecting(ctx, r.pool, "update user cover image", `
        UPDATE users SET cover_image = $2, cover_image_id = $3, updated_at = $4 WHERE id = $1
    `, id, url, publicID, at)
}

// UpdatePassword stores a new password digest.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, digest string, at time.Time) error {
	return execAffecting(ctx, r.pool, "update user password", `
        UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
    `, id, digest, at)
}

// AddToWatchHistory moves videoID to the front of the user's history.
func (r *PostgresUserRepository) AddToWatchHistory(ctx context.Context, userID, videoID string) error {
	return execAffecting(ctx, r.pool, "update watch history", `
        UPDATE users
        SET watch_history = array_prepend($2::TEXT, array_remove(COALESCE(watch_history, '{}'), $2::TEXT))
        WHERE id = $1
    `, userID, videoID)
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, video_file, video_file_id, thumbnail, thumbnail_id,
                            title, description, duration, views, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, video.ID, video.OwnerID, video.VideoFile, video.VideoFileID, video.Thumbnail, video.ThumbnailID,
		video.Title, video.Description, video.Duration, video.Views, video.IsPublished, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		return classify(err, "insert video")
	}
	return nil
}

// FindByID fetches a video by identifier.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.Video{}, err
	}
	defer conn.Release()

	var v models.Video
	err = conn.QueryRow(ctx, `
        SELECT id, owner_id, video_file, video_file_id, thumbnail, thumbnail_id,
               title, description, duration, views, is_published, created_at, updated_at
        FROM videos
        WHERE id = $1
    `, id).Scan(&v.ID, &v.OwnerID, &v.VideoFile, &v.VideoFileID, &v.Thumbnail, &v.ThumbnailID,
		&v.Title, &v.Description, &v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, classify(err, "select video")
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}

// Update writes title, description, thumbnail and publish state.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video) error {
	return execAffecting(ctx, r.pool, "update video", `
        UPDATE videos
        SET title = $2, description = $3, thumbnail = $4, thumbnail_id = $5, is_published = $6, updated_at = $7
        WHERE id = $1
    `, video.ID, video.Title, video.Description, video.Thumbnail, video.ThumbnailID, video.IsPublished, video.UpdatedAt)
}

// Delete removes a video row.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	return execAffecting(ctx, r.pool, "delete video", `DELETE FROM videos WHERE id = $1`, id)
}

// IncrementViews adds one view to the video.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	return execAffecting(ctx, r.pool, "increment video views", `UPDATE videos SET views = views + 1 WHERE id = $1`, id)
}

// execAffecting runs a statement that must touch at least one row.
func execAffecting(ctx context.Context, pool db.Pool, op, query string, args ...any) error {
	conn, err := acquire(ctx, pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return classify(err, op)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
