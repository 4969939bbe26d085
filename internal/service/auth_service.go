package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/pantry-service/internal/auth"
	"github.com/spec-kit/pantry-service/internal/config"
	"github.com/spec-kit/pantry-service/internal/domain"
	"github.com/spec-kit/pantry-service/internal/events"
	"github.com/spec-kit/pantry-service/internal/repository"
	apperrors "github.com/spec-kit/pantry-service/pkg/util/errorutil"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordBytes = 72
	maxFullNameRunes = 200
)

var (
	errRefreshNotLive = errors.New("refresh token revoked, expired or unknown")
	errSubjectGone    = errors.New("refresh token subject missing or inactive")
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
	User            *domain.User
}

// RefreshResult is returned by a successful refresh. RefreshToken is set only
// when rotation is enabled.
type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// AuthService orchestrates registration, login, refresh and logout.
type AuthService struct {
	users  repository.UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenManager
	ledger *auth.RefreshLedger
	events events.Dispatcher
	logger *zap.Logger
	rotate bool
	now    func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo         repository.UserRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Hasher           *auth.PasswordHasher
	Tokens           *auth.TokenManager
	Events           events.Dispatcher
	Logger           *zap.Logger
	Now              func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Events
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewPasswordHasher(cfg.BcryptCost)
	}

	return &AuthService{
		users:  deps.UserRepo,
		hasher: hasher,
		tokens: deps.Tokens,
		ledger: auth.NewRefreshLedger(deps.RefreshTokenRepo, now),
		events: dispatcher,
		logger: logger,
		rotate: cfg.RotateRefreshTokens,
		now:    now,
	}
}

// Register creates a new account with the user role.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	name, err := normalizeFullName(fullName)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewEmailAlreadyRegistered()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	user, err := s.createUser(ctx, email, password, name, domain.RoleUser)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.EventUserRegistered, UserID: user.ID})
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, email, password string, fullName *string, role domain.Role) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewEmailAlreadyRegistered()
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and opens a new refresh token lineage.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Burn(password)
			s.publish(ctx, events.Event{Type: events.EventLoginFailed, Payload: map[string]any{"reason": "unknown_email"}})
			return nil, apperrors.NewInvalidCredentials()
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.publish(ctx, events.Event{Type: events.EventLoginFailed, UserID: user.ID, Payload: map[string]any{"reason": "bad_password"}})
		return nil, apperrors.NewInvalidCredentials()
	}
	if !user.IsActive {
		s.publish(ctx, events.Event{Type: events.EventLoginFailed, UserID: user.ID, Payload: map[string]any{"reason": "account_disabled"}})
		return nil, apperrors.NewAccountDisabled()
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = &now

	access, accessExp, err := s.tokens.IssueAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.openRefresh(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.EventLoginSucceeded, UserID: user.ID})
	return &LoginResult{
		AccessToken:     access,
		AccessExpiresAt: accessExp,
		RefreshToken:    refresh,
		User:            user,
	}, nil
}

func (s *AuthService) openRefresh(ctx context.Context, userID string) (string, error) {
	refresh, refreshExp, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}
	if _, err := s.ledger.Store(ctx, userID, refresh, refreshExp); err != nil {
		if errors.Is(err, auth.ErrLedgerIntegrity) {
			s.logger.Error("refresh token ledger collision", zap.String("user_id", userID), zap.Error(err))
		}
		return "", err
	}
	return refresh, nil
}

// Refresh exchanges a live refresh token for a new access token. Every
// failure, whatever its cause, surfaces as INVALID_REFRESH_TOKEN.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*RefreshResult, error) {
	claims, err := s.tokens.Verify(rawRefresh, domain.TokenTypeRefresh)
	if err != nil {
		return nil, s.rejectRefresh(ctx, "", err)
	}
	userID := claims.UserID()

	if s.rotate {
		// The conditional revoke doubles as the compare-and-set that lets
		// only one concurrent refresh of the same token succeed.
		consumed, err := s.ledger.Revoke(ctx, rawRefresh)
		if err != nil {
			return nil, err
		}
		if !consumed {
			return nil, s.rejectRefresh(ctx, userID, errRefreshNotLive)
		}
	} else {
		live, err := s.ledger.IsLive(ctx, rawRefresh)
		if err != nil {
			return nil, err
		}
		if !live {
			return nil, s.rejectRefresh(ctx, userID, errRefreshNotLive)
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, s.rejectRefresh(ctx, userID, errSubjectGone)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, s.rejectRefresh(ctx, userID, errSubjectGone)
	}

	access, accessExp, err := s.tokens.IssueAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	result := &RefreshResult{AccessToken: access, AccessExpiresAt: accessExp}

	if s.rotate {
		next, err := s.openRefresh(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		result.RefreshToken = next
	}

	s.publish(ctx, events.Event{Type: events.EventTokenRefreshed, UserID: user.ID, Payload: map[string]any{"rotated": s.rotate}})
	return result, nil
}

func (s *AuthService) rejectRefresh(ctx context.Context, userID string, reason error) error {
	s.logger.Debug("refresh rejected", zap.String("user_id", userID), zap.String("reason", reason.Error()))
	s.publish(ctx, events.Event{Type: events.EventRefreshRejected, UserID: userID, Payload: map[string]any{"reason": reason.Error()}})
	return apperrors.NewInvalidRefreshToken(reason)
}

// Logout revokes the refresh token. Unknown, expired or already revoked
// tokens are accepted silently.
func (s *AuthService) Logout(ctx context.Context, rawRefresh string) error {
	revoked, err := s.ledger.Revoke(ctx, rawRefresh)
	if err != nil {
		return err
	}
	if revoked {
		var userID string
		if claims, err := s.tokens.Verify(rawRefresh, domain.TokenTypeRefresh); err == nil {
			userID = claims.UserID()
		}
		s.publish(ctx, events.Event{Type: events.EventLoggedOut, UserID: userID})
	}
	return nil
}

// LogoutAll revokes every live refresh token of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.ledger.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, events.Event{Type: events.EventSessionsRevoked, UserID: userID, Payload: map[string]any{"count": count}})
	return count, nil
}

// CurrentUser loads the account behind an authenticated principal.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthenticated(err)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// ChangePassword verifies the current password, stores the new hash and
// logs the user out everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return apperrors.NewInvalidCredentials()
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.publish(ctx, events.Event{Type: events.EventPasswordChanged, UserID: userID})

	_, err = s.LogoutAll(ctx, userID)
	return err
}

// SetUserActive activates or deactivates an account. Deactivation revokes
// all of the user's refresh tokens.
func (s *AuthService) SetUserActive(ctx context.Context, actorID, userID string, active bool) (*domain.User, error) {
	if actorID == userID && !active {
		return nil, apperrors.NewValidationError("administrators cannot deactivate themselves", nil)
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return nil, s.mapUserMutation(userID, err)
	}
	if !active {
		if _, err := s.LogoutAll(ctx, userID); err != nil {
			return nil, err
		}
	}
	s.publish(ctx, events.Event{Type: events.EventUserStatusChanged, UserID: userID, Payload: map[string]any{"is_active": active, "actor_id": actorID}})
	return s.users.GetByID(ctx, userID)
}

// SetUserRole changes an account's role.
func (s *AuthService) SetUserRole(ctx context.Context, actorID, userID string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	if actorID == userID && !role.IsAdmin() {
		return nil, apperrors.NewValidationError("administrators cannot demote themselves", nil)
	}
	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return nil, s.mapUserMutation(userID, err)
	}
	s.publish(ctx, events.Event{Type: events.EventUserRoleChanged, UserID: userID, Payload: map[string]any{"role": role, "actor_id": actorID}})
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) mapUserMutation(userID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("user", map[string]any{"id": userID})
	}
	return fmt.Errorf("update user: %w", err)
}

// EnsureAdmin creates the bootstrap administrator, or promotes an existing
// account with that email.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.Role.IsAdmin() {
			if err := s.users.SetRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
				return nil, fmt.Errorf("promote admin: %w", err)
			}
			existing.Role = domain.RoleAdmin
		}
		return existing, nil
	case errors.Is(err, repository.ErrNotFound):
		if err := validatePassword(password); err != nil {
			return nil, err
		}
		return s.createUser(ctx, email, password, nil, domain.RoleAdmin)
	default:
		return nil, fmt.Errorf("lookup admin: %w", err)
	}
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Ledger exposes the refresh token ledger for maintenance workers.
func (s *AuthService) Ledger() *auth.RefreshLedger {
	return s.ledger
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperrors.NewValidationError("invalid email address", map[string]any{"field": "email"})
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return apperrors.NewValidationError(
			fmt.Sprintf("password must be at least %d characters", minPasswordLength),
			map[string]any{"field": "password"})
	}
	if len(password) > maxPasswordBytes {
		return apperrors.NewValidationError(
			fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes),
			map[string]any{"field": "password"})
	}
	return nil
}

func normalizeFullName(fullName string) (*string, error) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(name) > maxFullNameRunes {
		return nil, apperrors.NewValidationError("full_name is too long", map[string]any{"field": "full_name"})
	}
	return &name, nil
}
