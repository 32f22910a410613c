package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// UsersHandler exposes profile reads, stats, the admin directory, and
// profile updates.
type UsersHandler struct {
	service  *service.UserService
	resolver *auth.Resolver
	bus      events.Dispatcher
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService, resolver *auth.Resolver, bus events.Dispatcher) *UsersHandler {
	return &UsersHandler{service: userService, resolver: resolver, bus: bus}
}

// Get handles GET /users/:id. Own profile or ADMIN.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}
	targetID := c.Params("id")
	if decision := auth.RequireOwnerOrRole(user, targetID, domain.RoleAdmin); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "user.get")
	}

	profile, err := h.service.GetProfile(c.UserContext(), targetID)
	if err != nil {
		return err
	}

	tickets := make([]dto.TicketResponse, 0, len(profile.Tickets))
	for i := range profile.Tickets {
		tickets = append(tickets, dto.TicketFrom(&profile.Tickets[i]))
	}
	return c.JSON(fiber.Map{"data": dto.ProfileResponse{
		User:    dto.CurrentUserFrom(profile.User),
		Tickets: tickets,
	}})
}

// Stats handles GET /users/:id/stats. Own stats or ADMIN.
func (h *UsersHandler) Stats(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}
	targetID := c.Params("id")
	if decision := auth.RequireOwnerOrRole(user, targetID, domain.RoleAdmin); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "user.stats")
	}

	stats, err := h.service.GetStats(c.UserContext(), targetID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketStatsFrom(stats)})
}

// List handles GET /users. ADMIN only.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}
	if decision := auth.RequireRole(user, domain.RoleAdmin); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "user.list")
	}

	users, err := h.service.ListUsers(c.UserContext())
	if err != nil {
		return err
	}

	items := make([]dto.CurrentUserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.CurrentUserFrom(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateProfile handles PATCH /users/me.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}
	if decision := auth.RequireAuthenticated(user); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "user.update_profile")
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	updated, err := h.service.UpdateProfile(c.UserContext(), user.ID, service.ProfileUpdateInput{
		Name:            req.Name,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CurrentUserResponse{
		ID:    updated.ID,
		Email: updated.Email,
		Name:  updated.Name,
		Role:  updated.Role,
	}})
}
