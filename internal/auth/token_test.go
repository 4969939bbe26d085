package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/pantry-service/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T, clock *fakeClock) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(TokenConfig{
		Secret:     []byte("test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	return tm
}

func TestIssueAccess_VerifyRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	tm := newTestManager(t, clock)

	tok, exp, err := tm.IssueAccess("user-1", "alice@example.com", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(15*time.Minute).Truncate(time.Second), exp)

	claims, err := tm.Verify(tok, domain.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, domain.TokenTypeAccess, claims.Type)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
}

func TestVerify_WrongType(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	tm := newTestManager(t, clock)

	access, _, err := tm.IssueAccess("user-1", "a@b.c", domain.RoleUser)
	require.NoError(t, err)
	_, err = tm.Verify(access, domain.TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	refresh, _, err := tm.IssueRefresh("user-1")
	require.NoError(t, err)
	_, err = tm.Verify(refresh, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	claims, err := tm.Verify(refresh, domain.TokenTypeRefresh)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
}

func TestVerify_Expired(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	tm := newTestManager(t, clock)

	tok, _, err := tm.IssueAccess("user-1", "a@b.c", domain.RoleUser)
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)
	_, err = tm.Verify(tok, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_ExpiredClaimWithValidSignature(t *testing.T) {
	tm := newTestManager(t, &fakeClock{now: time.Now()})

	claims := &Claims{Type: domain.TokenTypeAccess}
	claims.Subject = "user-1"
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tm.Verify(tok, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_LeewayTolerance(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	tm, err := NewTokenManager(TokenConfig{
		Secret:    []byte("test-secret"),
		AccessTTL: time.Minute,
		Leeway:    30 * time.Second,
		Now:       clock.Now,
	})
	require.NoError(t, err)

	tok, _, err := tm.IssueAccess("user-1", "a@b.c", domain.RoleUser)
	require.NoError(t, err)

	clock.Advance(time.Minute + 10*time.Second)
	_, err = tm.Verify(tok, domain.TokenTypeAccess)
	assert.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = tm.Verify(tok, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	tm := newTestManager(t, clock)
	other, err := NewTokenManager(TokenConfig{Secret: []byte("other-secret"), Now: clock.Now})
	require.NoError(t, err)

	tok, _, err := other.IssueAccess("user-1", "a@b.c", domain.RoleUser)
	require.NoError(t, err)

	_, err = tm.Verify(tok, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_ExpiredAndWrongSecretReportsSignature(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	tm := newTestManager(t, clock)
	other, err := NewTokenManager(TokenConfig{Secret: []byte("other-secret"), AccessTTL: time.Minute, Now: clock.Now})
	require.NoError(t, err)

	tok, _, err := other.IssueAccess("user-1", "a@b.c", domain.RoleUser)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	_, err = tm.Verify(tok, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	tm := newTestManager(t, &fakeClock{now: time.Now()})

	claims := &Claims{Type: domain.TokenTypeAccess}
	claims.Subject = "user-1"
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = tm.Verify(hs512, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.Verify(none, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	tm := newTestManager(t, &fakeClock{now: time.Now()})

	for _, tok := range []string{"", "not.a.jwt", "abc"} {
		_, err := tm.Verify(tok, domain.TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidSignature, tok)
	}
}

func TestVerify_MissingExpiry(t *testing.T) {
	tm := newTestManager(t, &fakeClock{now: time.Now()})

	claims := &Claims{Type: domain.TokenTypeAccess}
	claims.Subject = "user-1"
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tm.Verify(tok, domain.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIssueRefresh_UniquePerCall(t *testing.T) {
	tm := newTestManager(t, &fakeClock{now: time.Now()})

	a, _, err := tm.IssueRefresh("user-1")
	require.NoError(t, err)
	b, _, err := tm.IssueRefresh("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewTokenManager_Validation(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{})
	assert.Error(t, err)

	_, err = NewTokenManager(TokenConfig{Secret: []byte("s"), Algorithm: "RS256"})
	assert.Error(t, err)

	tm, err := NewTokenManager(TokenConfig{Secret: []byte("s"), Algorithm: "HS384"})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, tm.AccessTTL())
}
