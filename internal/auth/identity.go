package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// ErrStorageUnavailable indicates the resolver could not reach user
// storage. Distinct from anonymous so callers can show a retry banner
// instead of a login prompt.
var ErrStorageUnavailable = errors.New("user storage unavailable")

const currentUserKey = "current_user"

// RevocationStore answers whether a token id was revoked by logout.
type RevocationStore interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Resolver turns a request's session cookie into a hydrated current
// user. Anonymous is a valid state: a missing cookie, an invalid or
// revoked token, and a deleted user all resolve to (nil, nil).
type Resolver struct {
	cookies *SessionCookies
	tokens  *TokenCodec
	users   repository.UserRepository
	revoked RevocationStore
	bus     events.Dispatcher
	logger  *zap.Logger
}

// NewResolver constructs the resolver. revoked and bus may be nil.
func NewResolver(cookies *SessionCookies, tokens *TokenCodec, users repository.UserRepository, revoked RevocationStore, bus events.Dispatcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		cookies: cookies,
		tokens:  tokens,
		users:   users,
		revoked: revoked,
		bus:     bus,
		logger:  logger,
	}
}

type resolution struct {
	user *domain.CurrentUser
	err  error
}

// Resolve returns the current user for the request, or nil for an
// anonymous request. The outcome is memoized per request, so handlers
// and guards may call it repeatedly at the cost of one storage lookup.
func (r *Resolver) Resolve(c *fiber.Ctx) (*domain.CurrentUser, error) {
	if cached, ok := c.Locals(currentUserKey).(*resolution); ok {
		return cached.user, cached.err
	}

	res := r.resolve(c)
	c.Locals(currentUserKey, res)
	return res.user, res.err
}

func (r *Resolver) resolve(c *fiber.Ctx) *resolution {
	token := r.cookies.Read(c)
	if token == "" {
		return &resolution{}
	}

	claims, err := r.tokens.Verify(token)
	if err != nil {
		// Invalid or expired sessions degrade to logged out, never crash
		// the request.
		events.Record(c.UserContext(), r.bus, events.KindTokenRejected, "", events.OutcomeRejected, map[string]any{
			"token_snippet": snippet(token),
		})
		return &resolution{}
	}

	if claims.SubjectID() == "" {
		return &resolution{}
	}

	if r.revoked != nil && claims.ID != "" {
		revoked, err := r.revoked.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			// The denylist is defense in depth on top of cookie deletion;
			// an outage fails open rather than logging everyone out.
			r.logger.Warn("revocation check failed", zap.Error(err))
			events.Record(c.UserContext(), r.bus, events.KindStorageError, claims.SubjectID(), events.OutcomeError, map[string]any{
				"store": "revocation",
			})
		} else if revoked {
			events.Record(c.UserContext(), r.bus, events.KindTokenRevoked, claims.SubjectID(), events.OutcomeRejected, nil)
			return &resolution{}
		}
	}

	user, err := r.users.GetByID(c.UserContext(), claims.SubjectID())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &resolution{}
		}
		r.logger.Error("current user lookup failed", zap.Error(err))
		events.Record(c.UserContext(), r.bus, events.KindStorageError, claims.SubjectID(), events.OutcomeError, map[string]any{
			"store": "users",
		})
		return &resolution{err: ErrStorageUnavailable}
	}

	// The persisted role is authoritative; the token's role claim is
	// advisory and may be stale for a long-lived session.
	if claims.Role != "" && claims.Role != user.Role {
		events.Record(c.UserContext(), r.bus, events.KindStaleRoleClaim, user.ID, events.OutcomeOK, map[string]any{
			"claimed":   string(claims.Role),
			"persisted": string(user.Role),
		})
	}

	return &resolution{user: domain.CurrentUserFrom(user)}
}

func snippet(token string) string {
	if len(token) > 10 {
		return token[:10]
	}
	return token
}
