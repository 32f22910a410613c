package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
}

// TicketListFilter describes admin listing filters.
type TicketListFilter struct {
	UserID      *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketService coordinates ticket and comment workflows. Authorization
// is decided by the callers (handlers apply guard predicates before any
// service call); this layer enforces input validity and existence.
type TicketService struct {
	tickets  repository.TicketRepository
	comments repository.CommentRepository
	bus      events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(tickets repository.TicketRepository, comments repository.CommentRepository, bus events.Dispatcher) *TicketService {
	return &TicketService{tickets: tickets, comments: comments, bus: bus}
}

// Create opens a ticket for the user.
func (s *TicketService) Create(ctx context.Context, userID string, input TicketCreateInput) (*domain.Ticket, error) {
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	if input.Subject == "" || input.Description == "" || input.Priority == "" {
		return nil, apperrors.NewValidationError("subject, description and priority are required", nil)
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": string(input.Priority)})
	}

	ticket := &domain.Ticket{
		UserID:      userID,
		Subject:     input.Subject,
		Description: input.Description,
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	events.Record(ctx, s.bus, events.KindTicketCreated, userID, events.OutcomeOK, map[string]any{
		"ticket_id": ticket.ID,
		"priority":  string(ticket.Priority),
	})
	return ticket, nil
}

// Get returns a ticket by id.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, err
	}
	return ticket, nil
}

// List returns tickets matching the filter.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		UserID:      filter.UserID,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
}

// ListForUser returns the user's own tickets, newest first.
func (s *TicketService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.ListByUser(ctx, userID, limit, offset)
}

// Close transitions a ticket to CLOSED. Closing a closed ticket is a
// conflict, not a silent no-op, so the admin UI can surface it.
func (s *TicketService) Close(ctx context.Context, actorID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket already closed", map[string]any{"id": ticketID})
	}

	now := time.Now()
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	events.Record(ctx, s.bus, events.KindTicketClosed, actorID, events.OutcomeOK, map[string]any{
		"ticket_id": ticket.ID,
	})
	return ticket, nil
}

// AddComment attaches an administrator reply to a ticket.
func (s *TicketService) AddComment(ctx context.Context, authorID, ticketID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", nil)
	}

	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID: ticketID,
		UserID:   authorID,
		Content:  content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	events.Record(ctx, s.bus, events.KindCommentAdded, authorID, events.OutcomeOK, map[string]any{
		"ticket_id":  ticketID,
		"comment_id": comment.ID,
	})
	return comment, nil
}

// ListComments returns a ticket's comments, newest first.
func (s *TicketService) ListComments(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	return s.comments.ListByTicket(ctx, ticketID)
}
