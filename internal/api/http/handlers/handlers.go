package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// currentUser resolves the request identity, mapping a storage outage to
// a 503 so clients can distinguish "log in" from "try again".
func currentUser(c *fiber.Ctx, resolver *auth.Resolver) (*domain.CurrentUser, error) {
	user, err := resolver.Resolve(c)
	if err != nil {
		if errors.Is(err, auth.ErrStorageUnavailable) {
			return nil, apperrors.NewUnavailable("unable to verify your session, please try again")
		}
		return nil, err
	}
	return user, nil
}

// deny records the denied check and returns the mapped error. Callers
// return immediately, before any mutation or sensitive read.
func deny(c *fiber.Ctx, bus events.Dispatcher, user *domain.CurrentUser, decision auth.Decision, action string) error {
	subject := ""
	if user != nil {
		subject = user.ID
	}
	events.Record(c.UserContext(), bus, events.KindAccessDenied, subject, events.OutcomeDenied, map[string]any{
		"action": action,
		"reason": decision.Reason,
	})
	return decision.Err()
}
