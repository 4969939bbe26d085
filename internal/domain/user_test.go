package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)
	assert.True(t, role.IsAdmin())

	role, ok = ParseRole("user")
	assert.True(t, ok)
	assert.False(t, role.IsAdmin())

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
	assert.False(t, Role("superuser").Valid())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}

func TestRefreshTokenRecord_LiveAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	live := &RefreshTokenRecord{ExpiresAt: now.Add(time.Minute)}
	assert.True(t, live.LiveAt(now))

	revoked := &RefreshTokenRecord{ExpiresAt: now.Add(time.Minute), Revoked: true}
	assert.False(t, revoked.LiveAt(now))

	expired := &RefreshTokenRecord{ExpiresAt: now}
	assert.False(t, expired.LiveAt(now))

	var missing *RefreshTokenRecord
	assert.False(t, missing.LiveAt(now))
}
