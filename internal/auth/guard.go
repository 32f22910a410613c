package auth

import (
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// DecisionKind classifies the outcome of an authorization check.
type DecisionKind int

const (
	DecisionAllowed DecisionKind = iota
	DecisionUnauthenticated
	DecisionForbidden
)

// Decision is the computed outcome of one guard predicate. It is a
// value, not an error: callers branch on it and short-circuit denied
// operations before any side effect.
type Decision struct {
	Kind   DecisionKind
	Reason string
}

// Allowed reports whether the operation may proceed.
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllowed
}

// Err maps a denial to the transport error taxonomy; nil when allowed.
func (d Decision) Err() error {
	switch d.Kind {
	case DecisionAllowed:
		return nil
	case DecisionUnauthenticated:
		return apperrors.NewUnauthorized(d.Reason)
	default:
		return apperrors.NewForbidden(d.Reason)
	}
}

func allowed() Decision {
	return Decision{Kind: DecisionAllowed}
}

func unauthenticated(reason string) Decision {
	if reason == "" {
		reason = "you must be logged in"
	}
	return Decision{Kind: DecisionUnauthenticated, Reason: reason}
}

func forbidden(reason string) Decision {
	if reason == "" {
		reason = "you do not have permission to do that"
	}
	return Decision{Kind: DecisionForbidden, Reason: reason}
}

// RequireAuthenticated checks that a current user exists.
func RequireAuthenticated(user *domain.CurrentUser) Decision {
	if user == nil {
		return unauthenticated("")
	}
	return allowed()
}

// RequireRole checks that the user is authenticated and holds the role.
func RequireRole(user *domain.CurrentUser, role domain.Role) Decision {
	if user == nil {
		return unauthenticated("")
	}
	if user.Role != role {
		return forbidden(roleReason(role))
	}
	return allowed()
}

func roleReason(role domain.Role) string {
	if role == domain.RoleAdmin {
		return "administrator access required"
	}
	return strings.ToLower(string(role)) + " role required"
}

// RequireOwnerOrRole allows the owner of a resource regardless of role,
// and any holder of the given role regardless of ownership.
func RequireOwnerOrRole(user *domain.CurrentUser, ownerID string, role domain.Role) Decision {
	if user == nil {
		return unauthenticated("")
	}
	if user.ID == ownerID || user.Role == role {
		return allowed()
	}
	return forbidden("not your resource")
}
