package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidstream/backend/internal/db"
	"github.com/vidstream/backend/internal/models"
)

// PostgresCommentRepository provides PostgreSQL-backed persistence for comments.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// Create stores a new comment.
func (r *PostgresCommentRepository) Create(ctx context.Context, c models.Comment) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO comments (id, video_id, owner_id, content, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, c.ID, c.VideoID, c.OwnerID, c.Content, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return classify(err, "insert comment")
	}
	return nil
}

// FindByID fetches a comment by identifier.
func (r *PostgresCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.Comment{}, err
	}
	defer conn.Release()

	var c models.Comment
	err = conn.QueryRow(ctx, `
        SELECT id, video_id, owner_id, content, created_at, updated_at
        FROM comments
        WHERE id = $1
    `, id).Scan(&c.ID, &c.VideoID, &c.OwnerID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, classify(err, "select comment")
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// UpdateContent rewrites the comment text.
func (r *PostgresCommentRepository) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	return execAffecting(ctx, r.pool, "update comment", `
        UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1
    `, id, content, at)
}

// Delete removes a single comment.
func (r *PostgresCommentRepository) Delete(ctx context.Context, id string) error {
	return execAffecting(ctx, r.pool, "delete comment", `DELETE FROM comments WHERE id = $1`, id)
}

// IDsByVideo lists the comment ids attached to a video.
func (r *PostgresCommentRepository) IDsByVideo(ctx context.Context, videoID string) ([]string, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT id FROM comments WHERE video_id = $1`, videoID)
	if err != nil {
		return nil, classify(err, "query comment ids")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err, "scan comment ids")
	}
	return ids, nil
}

// DeleteByVideo removes every comment on a video.
func (r *PostgresCommentRepository) DeleteByVideo(ctx context.Context, videoID string) (int64, error) {
	return execCount(ctx, r.pool, "delete video comments", `DELETE FROM comments WHERE video_id = $1`, videoID)
}

// PostgresTweetRepository provides PostgreSQL-backed persistence for tweets.
type PostgresTweetRepository struct {
	pool db.Pool
}

// NewPostgresTweetRepository constructs a tweet repository backed by PostgreSQL.
func NewPostgresTweetRepository(pool db.Pool) *PostgresTweetRepository {
	return &PostgresTweetRepository{pool: pool}
}

// Create stores a new tweet.
func (r *PostgresTweetRepository) Create(ctx context.Context, t models.Tweet) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO tweets (id, owner_id, content, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, t.ID, t.OwnerID, t.Content, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return classify(err, "insert tweet")
	}
	return nil
}

// FindByID fetches a tweet by identifier.
func (r *PostgresTweetRepository) FindByID(ctx context.Context, id string) (models.Tweet, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.Tweet{}, err
	}
	defer conn.Release()

	var t models.Tweet
	err = conn.QueryRow(ctx, `
        SELECT id, owner_id, content, created_at, updated_at
        FROM tweets
        WHERE id = $1
    `, id).Scan(&t.ID, &t.OwnerID, &t.Content, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tweet{}, ErrNotFound
		}
		return models.Tweet{}, classify(err, "select tweet")
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

// UpdateContent rewrites the tweet text.
func (r *PostgresTweetRepository) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	return execAffecting(ctx, r.pool, "update tweet", `
        UPDATE tweets SET content = $2, updated_at = $3 WHERE id = $1
    `, id, content, at)
}

// Delete removes a tweet.
func (r *PostgresTweetRepository) Delete(ctx context.Context, id string) error {
	return execAffecting(ctx, r.pool, "delete tweet", `DELETE FROM tweets WHERE id = $1`, id)
}

// PostgresPlaylistRepository provides PostgreSQL-backed persistence for playlists.
type PostgresPlaylistRepository struct {
	pool db.Pool
}

// NewPostgresPlaylistRepository constructs a playlist repository backed by PostgreSQL.
func NewPostgresPlaylistRepository(pool db.Pool) *PostgresPlaylistRepository {
	return &PostgresPlaylistRepository{pool: pool}
}

// Create stores a new playlist.
func (r *PostgresPlaylistRepository) Create(ctx context.Context, p models.Playlist) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	videoIDs := p.VideoIDs
	if videoIDs == nil {
		videoIDs = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO playlists (id, owner_id, name, description, video_ids, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, p.ID, p.OwnerID, p.Name, p.Description, videoIDs, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return classify(err, "insert playlist")
	}
	return nil
}

// FindByID fetches a playlist by identifier.
func (r *PostgresPlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.Playlist{}, err
	}
	defer conn.Release()

	var p models.Playlist
	err = conn.QueryRow(ctx, `
        SELECT id, owner_id, name, description, COALESCE(video_ids, '{}'), created_at, updated_at
        FROM playlists
        WHERE id = $1
    `, id).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.VideoIDs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, classify(err, "select playlist")
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// UpdateDetails changes the playlist name and description.
func (r *PostgresPlaylistRepository) UpdateDetails(ctx context.Context, id, name, description string, at time.Time) error {
	return execAffecting(ctx, r.pool, "update playlist", `
        UPDATE playlists SET name = $2, description = $3, updated_at = $4 WHERE id = $1
    `, id, name, description, at)
}

// Delete removes a playlist.
func (r *PostgresPlaylistRepository) Delete(ctx context.Context, id string) error {
	return execAffecting(ctx, r.pool, "delete playlist", `DELETE FROM playlists WHERE id = $1`, id)
}

// AddVideo appends videoID unless the playlist already holds it.
func (r *PostgresPlaylistRepository) AddVideo(ctx context.Context, id, videoID string, at time.Time) error {
	return execAffecting(ctx, r.pool, "add playlist video", `
        UPDATE playlists
        SET video_ids = CASE
                WHEN $2::TEXT = ANY(COALESCE(video_ids, '{}')) THEN video_ids
                ELSE array_append(COALESCE(video_ids, '{}'), $2::TEXT)
            END,
            updated_at = $3
        WHERE id = $1
    `, id, videoID, at)
}

// RemoveVideo drops videoID from the playlist. Removing an absent id succeeds.
func (r *PostgresPlaylistRepository) RemoveVideo(ctx context.Context, id, videoID string, at time.Time) error {
	return execAffecting(ctx, r.pool, "remove playlist video", `
        UPDATE playlists
        SET video_ids = array_remove(COALESCE(video_ids, '{}'), $2::TEXT), updated_at = $3
        WHERE id = $1
    `, id, videoID, at)
}

// execCount runs a statement and reports how many rows it touched.
func execCount(ctx context.Context, pool db.Pool, op, query string, args ...any) (int64, error) {
	conn, err := acquire(ctx, pool)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, classify(err, op)
	}
	return tag.RowsAffected(), nil
}

var _ CommentRepository = (*PostgresCommentRepository)(nil)
var _ TweetRepository = (*PostgresTweetRepository)(nil)
var _ PlaylistRepository = (*PostgresPlaylistRepository)(nil)
