package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates supported event identifiers.
type Kind string

const (
	KindTokenRejected  Kind = "auth_token_rejected"
	KindTokenRevoked   Kind = "auth_token_revoked"
	KindLoginFailed    Kind = "auth_login_failed"
	KindUserRegistered Kind = "user_registered"
	KindUserLoggedOut  Kind = "user_logged_out"
	KindAccessDenied   Kind = "access_denied"
	KindStorageError   Kind = "resolver_storage_error"
	KindStaleRoleClaim Kind = "stale_role_claim"
	KindTicketCreated  Kind = "ticket_created"
	KindTicketClosed   Kind = "ticket_closed"
	KindCommentAdded   Kind = "comment_added"
)

// Outcome labels how the recorded operation ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDenied   Outcome = "denied"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// Event is a structured observability record. Subject is the user id the
// event concerns, when known. Recording is fire-and-forget: it never
// blocks or fails the operation that emitted it.
type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Subject   string         `json:"subject,omitempty"`
	Outcome   Outcome        `json:"outcome"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Record publishes an event on the dispatcher, swallowing any publish
// error. A nil dispatcher is allowed and drops the event.
func Record(ctx context.Context, d Dispatcher, kind Kind, subject string, outcome Outcome, fields map[string]any) {
	if d == nil {
		return
	}
	_ = d.Publish(ctx, Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   subject,
		Outcome:   outcome,
		Timestamp: time.Now(),
		Fields:    fields,
	})
}
