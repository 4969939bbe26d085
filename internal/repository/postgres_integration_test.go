package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/pantry-service/internal/domain"
	"github.com/spec-kit/pantry-service/internal/persistence"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	return pool
}

func TestPostgresUserRepository(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	email := "Pg-" + uuid.NewString() + "@Example.com"
	name := "Pat"
	user := &domain.User{Email: email, PasswordHash: "hash", FullName: &name, Role: domain.RoleUser, IsActive: true}
	require.NoError(t, repo.Create(ctx, user))
	require.NotEmpty(t, user.ID)

	got, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, domain.NormalizeEmail(email), got.Email)
	require.NotNil(t, got.FullName)
	assert.Equal(t, "Pat", *got.FullName)
	assert.Nil(t, got.LastLoginAt)

	dup := &domain.User{Email: domain.NormalizeEmail(email), PasswordHash: "x", Role: domain.RoleUser, IsActive: true}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicate)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, now))
	require.NoError(t, repo.SetRole(ctx, user.ID, domain.RoleAdmin))
	require.NoError(t, repo.SetActive(ctx, user.ID, false))

	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, now.Equal(*got.LastLoginAt))
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, repo.SetActive(ctx, uuid.NewString(), true), ErrNotFound)
}

func TestPostgresUserRepository_MalformedIDIsNotFound(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewUserRepository(pool)

	assert.ErrorIs(t, repo.SetActive(ctx, "not-a-uuid", true), ErrNotFound)
	assert.ErrorIs(t, repo.SetRole(ctx, "not-a-uuid", domain.RoleAdmin), ErrNotFound)

	_, err := repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = pool.Exec(ctx, `UPDATE users SET is_active=TRUE WHERE id=$1::text::uuid`, "not-a-uuid")
	assert.ErrorIs(t, mapPgError(err), ErrNotFound)
}

func TestPostgresRefreshTokenRepository(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	tokens := NewRefreshTokenRepository(pool)

	user := &domain.User{Email: uuid.NewString() + "@example.com", PasswordHash: "h", Role: domain.RoleUser, IsActive: true}
	require.NoError(t, users.Create(ctx, user))

	now := time.Now()
	hash := func() string { return (uuid.NewString() + uuid.NewString())[:64] }

	h1 := hash()
	require.NoError(t, tokens.Create(ctx, &domain.RefreshTokenRecord{UserID: user.ID, TokenHash: h1, ExpiresAt: now.Add(time.Hour)}))
	assert.ErrorIs(t, tokens.Create(ctx, &domain.RefreshTokenRecord{UserID: user.ID, TokenHash: h1, ExpiresAt: now.Add(time.Hour)}), ErrDuplicate)

	h2 := hash()
	require.NoError(t, tokens.Create(ctx, &domain.RefreshTokenRecord{UserID: user.ID, TokenHash: h2, ExpiresAt: now.Add(time.Hour)}))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := tokens.RevokeLive(ctx, h1, now)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)

	rec, err := tokens.GetByHash(ctx, h1)
	require.NoError(t, err)
	assert.True(t, rec.Revoked)

	count, err := tokens.RevokeAllLive(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = tokens.GetByHash(ctx, hash())
	assert.ErrorIs(t, err, ErrNotFound)

	count, err = tokens.RevokeAllLive(ctx, "not-a-uuid", now)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPostgresRefreshTokenRepository_DeleteStaleUsesRevokedAt(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	tokens := NewRefreshTokenRepository(pool)

	user := &domain.User{Email: uuid.NewString() + "@example.com", PasswordHash: "h", Role: domain.RoleUser, IsActive: true}
	require.NoError(t, users.Create(ctx, user))

	now := time.Now()
	hash := (uuid.NewString() + uuid.NewString())[:64]
	require.NoError(t, tokens.Create(ctx, &domain.RefreshTokenRecord{UserID: user.ID, TokenHash: hash, ExpiresAt: now.Add(30 * 24 * time.Hour)}))
	_, err := pool.Exec(ctx, `UPDATE refresh_tokens SET created_at=$1 WHERE token_hash=$2`, now.Add(-8*24*time.Hour), hash)
	require.NoError(t, err)

	ok, err := tokens.RevokeLive(ctx, hash, now.Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = tokens.DeleteStale(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)

	rec, err := tokens.GetByHash(ctx, hash)
	require.NoError(t, err)
	assert.True(t, rec.Revoked)
	require.NotNil(t, rec.RevokedAt)
}
