package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vidstream/backend/internal/db"
	"github.com/vidstream/backend/internal/models"
)

// PostgresLikeRepository provides PostgreSQL-backed persistence for likes.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

// FindLike fetches the like a user placed on target.
func (r *PostgresLikeRepository) FindLike(ctx context.Context, likedBy string, target models.LikeTarget) (models.Like, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.Like{}, err
	}
	defer conn.Release()

	var like models.Like
	err = conn.QueryRow(ctx, `
        SELECT id, liked_by, target_kind, target_id, created_at
        FROM likes
        WHERE liked_by = $1 AND target_kind = $2 AND target_id = $3
    `, likedBy, string(target.Kind), target.ID).Scan(&like.ID, &like.LikedBy, &like.Target.Kind, &like.Target.ID, &like.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Like{}, ErrNotFound
		}
		return models.Like{}, classify(err, "select like")
	}
	like.CreatedAt = like.CreatedAt.UTC()
	return like, nil
}

// CreateLike stores a like. A second like on the same target reports ErrConflict.
func (r *PostgresLikeRepository) CreateLike(ctx context.Context, like models.Like) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO likes (id, liked_by, target_kind, target_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, like.ID, like.LikedBy, string(like.Target.Kind), like.Target.ID, like.CreatedAt)
	if err != nil {
		return classify(err, "insert like")
	}
	return nil
}

// DeleteLike removes a like by id.
func (r *PostgresLikeRepository) DeleteLike(ctx context.Context, id string) error {
	return execAffecting(ctx, r.pool, "delete like", `DELETE FROM likes WHERE id = $1`, id)
}

// DeleteByTargets removes every like on the listed targets of one kind.
func (r *PostgresLikeRepository) DeleteByTargets(ctx context.Context, kind models.TargetKind, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return execCount(ctx, r.pool, "delete likes by target", `
        DELETE FROM likes WHERE target_kind = $1 AND target_id = ANY($2)
    `, string(kind), ids)
}

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for subscriptions.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// FindSubscription fetches the subscription of subscriberID to channelID.
func (r *PostgresSubscriptionRepository) FindSubscription(ctx context.Context, subscriberID, channelID string) (models.Subscription, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return models.Subscription{}, err
	}
	defer conn.Release()

	var sub models.Subscription
	err = conn.QueryRow(ctx, `
        SELECT id, subscriber_id, channel_id, created_at
        FROM subscriptions
        WHERE subscriber_id = $1 AND channel_id = $2
    `, subscriberID, channelID).Scan(&sub.ID, &sub.SubscriberID, &sub.ChannelID, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Subscription{}, ErrNotFound
		}
		return models.Subscription{}, classify(err, "select subscription")
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	return sub, nil
}

// CreateSubscription stores a subscription. Duplicates report ErrConflict.
func (r *PostgresSubscriptionRepository) CreateSubscription(ctx context.Context, sub models.Subscription) error {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3, $4)
    `, sub.ID, sub.SubscriberID, sub.ChannelID, sub.CreatedAt)
	if err != nil {
		return classify(err, "insert subscription")
	}
	return nil
}

// DeleteSubscription removes a subscription by id.
func (r *PostgresSubscriptionRepository) DeleteSubscription(ctx context.Context, id string) error {
	return execAffecting(ctx, r.pool, "delete subscription", `DELETE FROM subscriptions WHERE id = $1`, id)
}

var _ LikeRepository = (*PostgresLikeRepository)(nil)
var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
