package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/pantry-service/internal/domain"
	apperrors "github.com/spec-kit/pantry-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

var (
	errMissingHeader = errors.New("missing authorization header")
	errMalformedAuth = errors.New("malformed authorization header")
)

// Principal represents the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Role   domain.Role
}

// AuthMiddleware validates bearer access tokens. It never consults the
// refresh ledger or the credential store.
type AuthMiddleware struct {
	tokens *TokenManager
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return m.reject(c, err)
	}

	claims, err := m.tokens.Verify(raw, domain.TokenTypeAccess)
	if err != nil {
		return m.reject(c, err)
	}
	if !claims.Role.Valid() {
		return m.reject(c, errors.New("unknown role claim"))
	}

	c.Locals(principalKey, &Principal{
		UserID: claims.UserID(),
		Email:  claims.Email,
		Role:   claims.Role,
	})
	return c.Next()
}

func (m *AuthMiddleware) reject(c *fiber.Ctx, reason error) error {
	m.logger.Debug("access token rejected",
		zap.String("path", c.Path()),
		zap.String("reason", reason.Error()))
	return apperrors.NewUnauthenticated(reason)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errMalformedAuth
	}
	return strings.TrimSpace(parts[1]), nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
