package domain

import "time"

// Role distinguishes end-users from administrators.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the persisted account record. PasswordHash stays inside the
// repository/service layers and must never cross the API boundary.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CurrentUser is the trusted identity hydrated from a verified session.
// It deliberately omits the password hash and any other secret field.
type CurrentUser struct {
	ID    string
	Email string
	Name  string
	Role  Role
}

// IsAdmin reports whether the current user holds the ADMIN role.
func (u *CurrentUser) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CurrentUserFrom builds the trusted view from a persisted record.
func CurrentUserFrom(user *User) *CurrentUser {
	if user == nil {
		return nil
	}
	return &CurrentUser{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
