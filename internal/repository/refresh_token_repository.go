package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/pantry-service/internal/domain"
)

// RefreshTokenRepository persists the refresh token ledger.
// Every mutation is a single-row or single-statement update.
type RefreshTokenRepository interface {
	// Create fails with ErrDuplicate when the hash already exists.
	Create(ctx context.Context, record *domain.RefreshTokenRecord) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error)
	// RevokeLive flips revoked on the record only if it is still live at now.
	RevokeLive(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	RevokeAllLive(ctx context.Context, userID string, now time.Time) (int64, error)
	// DeleteStale removes records that expired or were revoked before cutoff.
	// Revoked records age from revoked_at, not from creation.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type refreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository returns a Postgres-backed implementation.
func NewRefreshTokenRepository(pool *pgxpool.Pool) RefreshTokenRepository {
	return &refreshTokenRepository{pool: pool}
}

func (r *refreshTokenRepository) Create(ctx context.Context, record *domain.RefreshTokenRecord) error {
	const query = `
        INSERT INTO refresh_tokens (user_id, token_hash, expires_at, revoked)
        VALUES ($1, $2, $3, FALSE)
        RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		record.UserID,
		record.TokenHash,
		record.ExpiresAt,
	).Scan(&record.ID, &record.CreatedAt)
	return mapPgError(err)
}

func (r *refreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	const query = `
        SELECT id, user_id, token_hash, expires_at, revoked, revoked_at, created_at
        FROM refresh_tokens WHERE token_hash=$1`

	var record domain.RefreshTokenRecord
	if err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&record.ID,
		&record.UserID,
		&record.TokenHash,
		&record.ExpiresAt,
		&record.Revoked,
		&record.RevokedAt,
		&record.CreatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &record, nil
}

func (r *refreshTokenRepository) RevokeLive(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	const query = `
        UPDATE refresh_tokens SET revoked=TRUE, revoked_at=$2
        WHERE token_hash=$1 AND revoked=FALSE AND expires_at > $2`

	cmd, err := r.pool.Exec(ctx, query, tokenHash, now)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *refreshTokenRepository) RevokeAllLive(ctx context.Context, userID string, now time.Time) (int64, error) {
	if !validID(userID) {
		return 0, nil
	}
	const query = `
        UPDATE refresh_tokens SET revoked=TRUE, revoked_at=$2
        WHERE user_id=$1 AND revoked=FALSE AND expires_at > $2`

	cmd, err := r.pool.Exec(ctx, query, userID, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *refreshTokenRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
        DELETE FROM refresh_tokens
        WHERE expires_at < $1 OR (revoked AND revoked_at < $1)`

	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
