package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AuthHandler exposes register, login, logout, and the current-user read.
type AuthHandler struct {
	auth     *service.AuthService
	cookies  *auth.SessionCookies
	resolver *auth.Resolver
	bus      events.Dispatcher
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies *auth.SessionCookies, resolver *auth.Resolver, bus events.Dispatcher) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies, resolver: resolver, bus: bus}
}

// Register handles POST /auth/register. A successful registration signs
// the user in by setting the session cookie.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, _, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	h.cookies.Write(c, token)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.CurrentUserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, _, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.cookies.Write(c, token)
	return c.JSON(fiber.Map{
		"data": dto.CurrentUserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	})
}

// Logout handles POST /auth/logout. Logging out while logged out is fine.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := h.cookies.Read(c)
	h.auth.Logout(c.UserContext(), token)
	h.cookies.Clear(c)
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "logged out"}})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := currentUser(c, h.resolver)
	if err != nil {
		return err
	}
	if decision := auth.RequireAuthenticated(user); !decision.Allowed() {
		return deny(c, h.bus, user, decision, "auth.me")
	}
	return c.JSON(fiber.Map{"data": dto.CurrentUserFrom(user)})
}
