package sqlite

import (
	"context"
	"time"

	"github.com/agrilink/agrilink/internal/issuer/domain"
	"github.com/agrilink/agrilink/internal/issuer/store"
)

type refreshTokensRepo struct {
	q querier
}

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked, created_at, updated_at`

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.Revoked)
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(
	ctx context.Context,
	hash string,
) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash)

	var t domain.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt,
		&t.Revoked, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

// ConsumeRefreshToken is the rotation compare-and-swap. The revoked = 0 guard
// means concurrent callers race on the same row and the affected-row count
// picks exactly one winner.
func (r *refreshTokensRepo) ConsumeRefreshToken(ctx context.Context, hash string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens
		 SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE token_hash = ? AND revoked = 0`, hash)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens
		 SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE token_hash = ? AND revoked = 0`, hash)
	return err
}

func (r *refreshTokensRepo) RevokeAllUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens
		 SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND revoked = 0`, userID)
	return err
}

// DeleteExpiredRefreshTokens binds the cutoff as a Go time so both sides of
// the comparison use the driver's timestamp encoding. CURRENT_TIMESTAMP is
// UTC without an offset and does not compare correctly against bound values
// on hosts away from UTC.
func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ?`, time.Now())
	return err
}
