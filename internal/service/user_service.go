package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// ProfileUpdateInput describes a profile change. Empty fields are left
// untouched; a password change must be confirmed.
type ProfileUpdateInput struct {
	Name            string
	Password        string
	ConfirmPassword string
}

// Profile bundles a user with their recent tickets for the profile page.
type Profile struct {
	User    *domain.CurrentUser
	Tickets []domain.Ticket
}

const recentTicketsLimit = 50

// UserService serves profile and directory reads plus profile updates.
type UserService struct {
	users      repository.UserRepository
	tickets    repository.TicketRepository
	bcryptCost int
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, tickets repository.TicketRepository, bcryptCost int) *UserService {
	return &UserService{users: users, tickets: tickets, bcryptCost: bcryptCost}
}

// GetProfile returns a user and their recent tickets.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, err
	}

	tickets, err := s.tickets.ListByUser(ctx, userID, recentTicketsLimit, 0)
	if err != nil {
		return nil, err
	}

	return &Profile{User: domain.CurrentUserFrom(user), Tickets: tickets}, nil
}

// GetStats returns a user's ticket counts.
func (s *UserService) GetStats(ctx context.Context, userID string) (*domain.TicketStats, error) {
	return s.tickets.StatsByUser(ctx, userID)
}

// ListUsers returns all accounts ordered by name. Callers must have
// applied the ADMIN guard before reaching this.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.CurrentUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.CurrentUser, 0, len(users))
	for i := range users {
		result = append(result, *domain.CurrentUserFrom(&users[i]))
	}
	return result, nil
}

// UpdateProfile changes the user's name and/or password.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input ProfileUpdateInput) (*domain.User, error) {
	if input.Password != "" && input.Password != input.ConfirmPassword {
		return nil, apperrors.NewValidationError("passwords do not match", nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	nameChanged := name != "" && name != user.Name
	passwordChanged := input.Password != ""

	if !nameChanged && !passwordChanged {
		return nil, apperrors.NewValidationError("no changes to update", nil)
	}

	if nameChanged {
		user.Name = name
	}
	if passwordChanged {
		hash, err := auth.HashPassword(input.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
