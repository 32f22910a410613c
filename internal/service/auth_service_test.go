package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type memoryUserStore struct {
	byEmail map[string]*domain.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{byEmail: make(map[string]*domain.User)}
}

func (s *memoryUserStore) Create(_ context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.byEmail[user.Email] = user
	return nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

type memoryRevoker struct {
	revoked map[string]time.Time
}

func (r *memoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if r.revoked == nil {
		r.revoked = make(map[string]time.Time)
	}
	r.revoked[tokenID] = until
	return nil
}

type recordingDispatcher struct {
	recorded []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.recorded = append(d.recorded, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.Kind, events.Handler) {}

func newTestAuthService(adminEmail string) (*AuthService, *memoryUserStore, *memoryRevoker, *auth.TokenCodec) {
	store := newMemoryUserStore()
	revoker := &memoryRevoker{}
	codec := auth.NewTokenCodec("test-secret", 7*24*time.Hour)
	cfg := config.SessionConfig{BcryptCost: 4, AdminEmail: adminEmail}
	return NewAuthService(cfg, store, codec, revoker, nil), store, revoker, codec
}

func TestRegisterIssuesSession(t *testing.T) {
	svc, _, _, codec := newTestAuthService("")

	user, token, exp, err := svc.Register(context.Background(), "Alice", "a@x.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotEmpty(t, user.ID)
	assert.True(t, exp.After(time.Now()))

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.SubjectID())
}

func TestRegisterAdminBootstrap(t *testing.T) {
	svc, _, _, _ := newTestAuthService("admin@x.com")

	user, _, _, err := svc.Register(context.Background(), "Root", "Admin@X.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestAuthService("")

	_, _, _, err := svc.Register(context.Background(), "Alice", "a@x.com", "secret123")
	require.NoError(t, err)

	_, _, _, err = svc.Register(context.Background(), "Other", "a@x.com", "secret456")
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestRegisterDuplicateEmailTelemetry(t *testing.T) {
	store := newMemoryUserStore()
	codec := auth.NewTokenCodec("test-secret", 7*24*time.Hour)
	bus := &recordingDispatcher{}
	svc := NewAuthService(config.SessionConfig{BcryptCost: 4}, store, codec, &memoryRevoker{}, bus)

	_, _, _, err := svc.Register(context.Background(), "Alice", "a@x.com", "secret123")
	require.NoError(t, err)

	_, _, _, err = svc.Register(context.Background(), "Other", "a@x.com", "secret456")
	require.Error(t, err)

	// The rejection counts against registration, not login failures.
	for _, event := range bus.recorded {
		assert.NotEqual(t, events.KindLoginFailed, event.Kind)
	}
	last := bus.recorded[len(bus.recorded)-1]
	assert.Equal(t, events.KindUserRegistered, last.Kind)
	assert.Equal(t, events.OutcomeRejected, last.Outcome)
}

func TestRegisterMissingFields(t *testing.T) {
	svc, _, _, _ := newTestAuthService("")

	_, _, _, err := svc.Register(context.Background(), "", "a@x.com", "secret123")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
}

func TestLoginSuccess(t *testing.T) {
	svc, _, _, _ := newTestAuthService("")

	registered, _, _, err := svc.Register(context.Background(), "Alice", "a@x.com", "secret123")
	require.NoError(t, err)

	user, token, _, err := svc.Login(context.Background(), "a@x.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, token)
}

func TestLoginUniformRejection(t *testing.T) {
	svc, _, _, _ := newTestAuthService("")

	_, _, _, err := svc.Register(context.Background(), "Alice", "a@x.com", "secret123")
	require.NoError(t, err)

	// Unknown email and wrong password must be indistinguishable.
	_, _, _, unknownErr := svc.Login(context.Background(), "nobody@x.com", "secret123")
	_, _, _, wrongErr := svc.Login(context.Background(), "a@x.com", "wrong")

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, apperrors.ToDomainError(unknownErr).Message, apperrors.ToDomainError(wrongErr).Message)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, revoker, codec := newTestAuthService("")

	_, token, _, err := svc.Register(context.Background(), "Alice", "a@x.com", "secret123")
	require.NoError(t, err)

	svc.Logout(context.Background(), token)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	_, ok := revoker.revoked[claims.ID]
	assert.True(t, ok)
}

func TestLogoutIdempotent(t *testing.T) {
	svc, _, revoker, _ := newTestAuthService("")

	// No token, garbage token, repeated logout: all fine.
	svc.Logout(context.Background(), "")
	svc.Logout(context.Background(), "garbage")
	svc.Logout(context.Background(), "garbage")
	assert.Empty(t, revoker.revoked)
}
