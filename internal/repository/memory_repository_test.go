package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/pantry-service/internal/domain"
)

func TestMemoryUserRepository_CaseInsensitiveEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user := &domain.User{Email: "Alice@Example.com", PasswordHash: "h", Role: domain.RoleUser, IsActive: true}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)

	got, err := repo.GetByEmail(ctx, "ALICE@example.COM")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	err = repo.Create(ctx, &domain.User{Email: "alice@EXAMPLE.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryUserRepository_Mutations(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	user := &domain.User{Email: "bob@example.com", PasswordHash: "old", Role: domain.RoleUser, IsActive: true}
	require.NoError(t, repo.Create(ctx, user))

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))
	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new"))
	require.NoError(t, repo.SetActive(ctx, user.ID, false))
	require.NoError(t, repo.SetRole(ctx, user.ID, domain.RoleAdmin))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, at.Equal(*got.LastLoginAt))
	assert.Equal(t, "new", got.PasswordHash)
	assert.False(t, got.IsActive)
	assert.Equal(t, domain.RoleAdmin, got.Role)

	assert.ErrorIs(t, repo.SetActive(ctx, "missing", true), ErrNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRefreshTokenRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRefreshTokenRepository()
	now := time.Now()

	rec := &domain.RefreshTokenRecord{UserID: "u1", TokenHash: "h1", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	dup := &domain.RefreshTokenRecord{UserID: "u2", TokenHash: "h1", ExpiresAt: now.Add(time.Hour)}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicate)

	got, err := repo.GetByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID, "duplicate must not overwrite")

	ok, err := repo.RevokeLive(ctx, "h1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RevokeLive(ctx, "h1", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.RevokeLive(ctx, "missing", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRefreshTokenRepository_RevokeAllLive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRefreshTokenRepository()
	now := time.Now()

	for _, rec := range []*domain.RefreshTokenRecord{
		{UserID: "u1", TokenHash: "a", ExpiresAt: now.Add(time.Hour)},
		{UserID: "u1", TokenHash: "b", ExpiresAt: now.Add(time.Hour)},
		{UserID: "u1", TokenHash: "c", ExpiresAt: now.Add(-time.Hour)},
		{UserID: "u2", TokenHash: "d", ExpiresAt: now.Add(time.Hour)},
	} {
		require.NoError(t, repo.Create(ctx, rec))
	}

	count, err := repo.RevokeAllLive(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	other, err := repo.GetByHash(ctx, "d")
	require.NoError(t, err)
	assert.False(t, other.Revoked)

	removed, err := repo.DeleteStale(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed, "only the expired record predates now")
}

func TestMemoryRefreshTokenRepository_DeleteStaleAgesRevokedByRevocationTime(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRefreshTokenRepository()
	repo.now = func() time.Time { return now.Add(-8 * 24 * time.Hour) }

	for _, hash := range []string{"old-revoked-recently", "old-revoked-long-ago"} {
		require.NoError(t, repo.Create(ctx, &domain.RefreshTokenRecord{UserID: "u1", TokenHash: hash, ExpiresAt: now.Add(30 * 24 * time.Hour)}))
	}

	ok, err := repo.RevokeLive(ctx, "old-revoked-long-ago", now.Add(-8*24*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.RevokeLive(ctx, "old-revoked-recently", now.Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := repo.GetByHash(ctx, "old-revoked-recently")
	require.NoError(t, err)
	require.NotNil(t, rec.RevokedAt)
	assert.Equal(t, now.Add(-time.Minute), *rec.RevokedAt)

	removed, err := repo.DeleteStale(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.GetByHash(ctx, "old-revoked-recently")
	require.NoError(t, err, "a record revoked inside the retention period is kept")
	_, err = repo.GetByHash(ctx, "old-revoked-long-ago")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRefreshTokenRepository_ConcurrentRevokeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRefreshTokenRepository()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, &domain.RefreshTokenRecord{UserID: "u1", TokenHash: "h", ExpiresAt: now.Add(time.Hour)}))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.RevokeLive(ctx, "h", now)
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
}
