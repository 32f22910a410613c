package dto

import "github.com/spec-kit/helpdesk/internal/domain"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CurrentUserResponse is the trusted identity exposed to clients.
// It never carries the password hash.
type CurrentUserResponse struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

// CurrentUserFrom maps the domain view to the response shape.
func CurrentUserFrom(user *domain.CurrentUser) CurrentUserResponse {
	return CurrentUserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
