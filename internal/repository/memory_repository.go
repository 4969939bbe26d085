package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/pantry-service/internal/domain"
)

// MemoryUserRepository is a process-local UserRepository used when no
// database is configured and in tests.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryUserRepository constructs an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	email := domain.NormalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return ErrDuplicate
	}

	now := r.now()
	user.ID = uuid.NewString()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *domain.User) { u.LastLoginAt = &at })
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return r.mutate(id, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (r *MemoryUserRepository) SetActive(_ context.Context, id string, active bool) error {
	return r.mutate(id, func(u *domain.User) { u.IsActive = active })
}

func (r *MemoryUserRepository) SetRole(_ context.Context, id string, role domain.Role) error {
	return r.mutate(id, func(u *domain.User) { u.Role = role })
}

func (r *MemoryUserRepository) mutate(id string, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(user)
	user.UpdatedAt = r.now()
	return nil
}

// MemoryRefreshTokenRepository is a process-local RefreshTokenRepository.
// The mutex gives RevokeLive the same compare-and-set semantics as the
// conditional UPDATE in Postgres.
type MemoryRefreshTokenRepository struct {
	mu     sync.Mutex
	byHash map[string]*domain.RefreshTokenRecord
	now    func() time.Time
}

// NewMemoryRefreshTokenRepository constructs an empty ledger store.
func NewMemoryRefreshTokenRepository() *MemoryRefreshTokenRepository {
	return &MemoryRefreshTokenRepository{
		byHash: make(map[string]*domain.RefreshTokenRecord),
		now:    time.Now,
	}
}

func (r *MemoryRefreshTokenRepository) Create(_ context.Context, record *domain.RefreshTokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byHash[record.TokenHash]; exists {
		return ErrDuplicate
	}
	record.ID = uuid.NewString()
	record.CreatedAt = r.now()
	record.Revoked = false
	record.RevokedAt = nil

	stored := *record
	r.byHash[record.TokenHash] = &stored
	return nil
}

func (r *MemoryRefreshTokenRepository) GetByHash(_ context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byHash[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *MemoryRefreshTokenRepository) RevokeLive(_ context.Context, tokenHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byHash[tokenHash]
	if !ok || !record.LiveAt(now) {
		return false, nil
	}
	record.Revoked = true
	record.RevokedAt = &now
	return true, nil
}

func (r *MemoryRefreshTokenRepository) RevokeAllLive(_ context.Context, userID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, record := range r.byHash {
		if record.UserID == userID && record.LiveAt(now) {
			record.Revoked = true
			revokedAt := now
			record.RevokedAt = &revokedAt
			count++
		}
	}
	return count, nil
}

func (r *MemoryRefreshTokenRepository) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for hash, record := range r.byHash {
		if record.ExpiresAt.Before(cutoff) || (record.Revoked && record.RevokedAt != nil && record.RevokedAt.Before(cutoff)) {
			delete(r.byHash, hash)
			count++
		}
	}
	return count, nil
}
