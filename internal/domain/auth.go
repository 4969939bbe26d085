package domain

import "time"

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// RefreshTokenRecord is the ledger row for one issued refresh token.
// The raw token is never stored, only its digest.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	// RevokedAt is set together with Revoked and ages the record for sweeping.
	RevokedAt *time.Time
	CreatedAt time.Time
}

// LiveAt reports whether the record can still be honored at now.
func (r *RefreshTokenRecord) LiveAt(now time.Time) bool {
	return r != nil && !r.Revoked && r.ExpiresAt.After(now)
}
