package repositories

import (
	"context"
	"time"
)

// SetRefreshToken stores token and marks the user's session active.
func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, userID, token string) error {
	return execAffecting(ctx, r.pool, "set refresh token", `
        UPDATE users
        SET refresh_token = $2, session_ended_at = NULL
        WHERE id = $1
    `, userID, token)
}

// SwapRefreshToken replaces expected with next only if expected is still stored.
func (r *PostgresUserRepository) SwapRefreshToken(ctx context.Context, userID, expected, next string) (bool, error) {
	conn, err := acquire(ctx, r.pool)
	if err != nil {
		return false, err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = $3
        WHERE id = $1 AND refresh_token = $2
    `, userID, expected, next)
	if err != nil {
		return false, classify(err, "swap refresh token")
	}

	return tag.RowsAffected() == 1, nil
}

// ClearRefreshToken ends the user's session.
func (r *PostgresUserRepository) ClearRefreshToken(ctx context.Context, userID string, endedAt time.Time) error {
	return execAffecting(ctx, r.pool, "clear refresh token", `
        UPDATE users
        SET refresh_token = NULL, session_ended_at = $2
        WHERE id = $1
    `, userID, endedAt.UTC())
}
