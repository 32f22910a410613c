package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler manages ticket and comment endpoints. Each operation
// resolves the current user once and applies exactly one guard predicate
// before touching the service layer.
type TicketsHandler struct {
	service  *service.TicketService
	resolver *auth.Resolver
	bus      events.Dispatcher
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, resolver *auth.Resolver, bus events.Dispatcher) *TicketsHandler {
	return &TicketsHandler{service: ticketService, resolver: resolver, bus: bus}
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}
	if decision := auth.RequireAuthenticated(user); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "ticket.create")
	}

	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.Create(c.UserContext(), user.ID, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketFrom(ticket)})
}

// List handles GET /tickets. Administrators see every ticket and may
// filter; everyone else sees their own tickets only.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}
	if decision := auth.RequireAuthenticated(user); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "ticket.list")
	}

	filter := parseTicketQuery(c)
	if !user.IsAdmin() {
		userID := user.ID
		filter = service.TicketListFilter{UserID: &userID, Limit: filter.Limit, Offset: filter.Offset}
	}

	tickets, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}

	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketFrom(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get handles GET /tickets/:id. Owner or ADMIN.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}

	ticket, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if decision := auth.RequireOwnerOrRole(user, ticket.UserID, domain.RoleAdmin); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "ticket.get")
	}
	return c.JSON(fiber.Map{"data": dto.TicketFrom(ticket)})
}

// Close handles POST /tickets/:id/close. ADMIN only; a denied check
// performs no reads or writes against ticket storage.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}
	if decision := auth.RequireRole(user, domain.RoleAdmin); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "ticket.close")
	}

	ticket, err := h.service.Close(c.UserContext(), user.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFrom(ticket)})
}

// AddComment handles POST /tickets/:id/comments. ADMIN only.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}
	if decision := auth.RequireRole(user, domain.RoleAdmin); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "comment.create")
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.service.AddComment(c.UserContext(), user.ID, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CommentFrom(comment)})
}

// ListComments handles GET /tickets/:id/comments. Owner or ADMIN.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}

	ticket, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if decision := auth.RequireOwnerOrRole(user, ticket.UserID, domain.RoleAdmin); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "comment.list")
	}

	comments, err := h.service.ListComments(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}

	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, dto.CommentFrom(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.SearchTerm = &search
	}
	if userID := strings.TrimSpace(c.Query("user_id")); userID != "" {
		filter.UserID = &userID
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	filter.Limit = parseInt(c.Query("limit"), 20)
	filter.Offset = parseInt(c.Query("offset"), 0)
	return filter
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
