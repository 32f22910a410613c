package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// SessionRevoker records logged-out token ids until they expire.
type SessionRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
}

// UserStore is the persistence surface the auth flows need.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AuthService coordinates registration, login, and logout flows.
type AuthService struct {
	users      UserStore
	tokens     *auth.TokenCodec
	revoker    SessionRevoker
	bus        events.Dispatcher
	bcryptCost int
	adminEmail string
}

// NewAuthService builds the service. revoker and bus may be nil.
func NewAuthService(cfg config.SessionConfig, users UserStore, tokens *auth.TokenCodec, revoker SessionRevoker, bus events.Dispatcher) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		revoker:    revoker,
		bus:        bus,
		bcryptCost: cfg.BcryptCost,
		adminEmail: strings.ToLower(cfg.AdminEmail),
	}
}

// Register creates an account and issues a session token. Accounts whose
// email matches the configured admin address are bootstrapped as ADMIN.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, string, time.Time, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("name, email and password are required", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		events.Record(ctx, s.bus, events.KindUserRegistered, "", events.OutcomeRejected, map[string]any{
			"reason": "email already registered", "email": email,
		})
		return nil, "", time.Time{}, apperrors.NewConflict("user already exists", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	role := domain.RoleUser
	if s.adminEmail != "" && email == s.adminEmail {
		role = domain.RoleAdmin
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.tokens.Sign(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	events.Record(ctx, s.bus, events.KindUserRegistered, user.ID, events.OutcomeOK, map[string]any{
		"email": user.Email,
	})
	return user, token, exp, nil
}

// Login authenticates an account and issues a session token. Unknown
// email and wrong password produce the same message so the endpoint
// does not leak which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			events.Record(ctx, s.bus, events.KindLoginFailed, "", events.OutcomeRejected, map[string]any{
				"reason": "user not found", "email": email,
			})
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid email or password")
		}
		return nil, "", time.Time{}, err
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		events.Record(ctx, s.bus, events.KindLoginFailed, user.ID, events.OutcomeRejected, map[string]any{
			"reason": "password mismatch",
		})
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid email or password")
	}

	token, exp, err := s.tokens.Sign(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Logout revokes the session token, if one is presented and still valid.
// Revocation is best-effort: the cookie deletion performed by the caller
// is what ends the session, and logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		// Expired or garbage token: nothing left to revoke.
		return
	}

	if s.revoker != nil && claims.ID != "" && claims.ExpiresAt != nil {
		_ = s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	}
	events.Record(ctx, s.bus, events.KindUserLoggedOut, claims.SubjectID(), events.OutcomeOK, nil)
}
