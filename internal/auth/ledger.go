package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/pantry-service/internal/domain"
	"github.com/spec-kit/pantry-service/internal/repository"
)

// ErrLedgerIntegrity signals two distinct refresh tokens hashing to the same
// digest. It is never recovered from by overwriting.
var ErrLedgerIntegrity = errors.New("refresh token ledger integrity violation")

// RefreshLedger is the server-side record of issued refresh tokens.
type RefreshLedger struct {
	repo repository.RefreshTokenRepository
	now  func() time.Time
}

// NewRefreshLedger wraps repo. A nil now defaults to time.Now.
func NewRefreshLedger(repo repository.RefreshTokenRepository, now func() time.Time) *RefreshLedger {
	if now == nil {
		now = time.Now
	}
	return &RefreshLedger{repo: repo, now: now}
}

// HashToken returns the hex SHA-256 digest stored in place of the raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Store records rawToken for userID with the expiry taken from its claims.
func (l *RefreshLedger) Store(ctx context.Context, userID, rawToken string, expiresAt time.Time) (*domain.RefreshTokenRecord, error) {
	record := &domain.RefreshTokenRecord{
		UserID:    userID,
		TokenHash: HashToken(rawToken),
		ExpiresAt: expiresAt,
	}
	if err := l.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: hash %s", ErrLedgerIntegrity, record.TokenHash[:12])
		}
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return record, nil
}

// IsLive reports whether rawToken has an unrevoked, unexpired record.
// A missing record is not live.
func (l *RefreshLedger) IsLive(ctx context.Context, rawToken string) (bool, error) {
	record, err := l.repo.GetByHash(ctx, HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup refresh token: %w", err)
	}
	return record.LiveAt(l.now()), nil
}

// Revoke marks the record for rawToken revoked. It returns false when no live
// record existed, which is not an error.
func (l *RefreshLedger) Revoke(ctx context.Context, rawToken string) (bool, error) {
	revoked, err := l.repo.RevokeLive(ctx, HashToken(rawToken), l.now())
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return revoked, nil
}

// RevokeAll revokes every live record owned by userID.
func (l *RefreshLedger) RevokeAll(ctx context.Context, userID string) (int64, error) {
	count, err := l.repo.RevokeAllLive(ctx, userID, l.now())
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens for user: %w", err)
	}
	return count, nil
}

// Sweep deletes records that expired or were revoked before olderThan ago.
func (l *RefreshLedger) Sweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	return l.repo.DeleteStale(ctx, l.now().Add(-olderThan))
}
