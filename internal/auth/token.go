package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/pantry-service/internal/domain"
)

// Verification failures. Callers at the API boundary collapse all of them
// into a single unauthenticated outcome; the distinction is for logs only.
var (
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrWrongTokenType   = errors.New("wrong token type")
)

// TokenConfig is the immutable signing configuration, fixed at startup.
type TokenConfig struct {
	Secret     []byte
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Leeway tolerates clock skew when checking exp. Zero means none.
	Leeway time.Duration
	Now    func() time.Time
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	now        func() time.Time
}

// Claims describes JWT payload.
type Claims struct {
	Email string           `json:"email,omitempty"`
	Role  domain.Role      `json:"role,omitempty"`
	Type  domain.TokenType `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// NewTokenManager builds a new manager.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", alg)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenManager{
		secret:     secret,
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		leeway:     cfg.Leeway,
		now:        cfg.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}

// IssueAccess signs a short-lived access token carrying identity and role.
func (tm *TokenManager) IssueAccess(userID, email string, role domain.Role) (string, time.Time, error) {
	return tm.sign(&Claims{
		Email: email,
		Role:  role,
		Type:  domain.TokenTypeAccess,
	}, userID, tm.accessTTL)
}

// IssueRefresh signs a long-lived refresh token. The random jti keeps
// every refresh token distinct, even when issued within the same second.
func (tm *TokenManager) IssueRefresh(userID string) (string, time.Time, error) {
	claims := &Claims{Type: domain.TokenTypeRefresh}
	claims.ID = uuid.NewString()
	return tm.sign(claims, userID, tm.refreshTTL)
}

func (tm *TokenManager) sign(claims *Claims, subject string, ttl time.Duration) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(ttl).Truncate(time.Second)

	claims.Subject = subject
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	tokenString, err := jwt.NewWithClaims(tm.method, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates signature, expiry, and type discriminator, returning claims.
// The signature is checked first: claims of a badly signed token are never
// trusted, so a token that is both expired and badly signed reports
// ErrInvalidSignature.
func (tm *TokenManager) Verify(tokenStr string, expected domain.TokenType) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tm.leeway),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", ErrInvalidSignature)
	}
	if claims.Type != expected {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
