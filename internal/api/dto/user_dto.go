package dto

import "github.com/spec-kit/helpdesk/internal/domain"

// UpdateProfileRequest payload for profile changes.
type UpdateProfileRequest struct {
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ProfileResponse bundles a user with their recent tickets.
type ProfileResponse struct {
	User    CurrentUserResponse `json:"user"`
	Tickets []TicketResponse    `json:"tickets"`
}

// TicketStatsResponse carries per-user ticket counts.
type TicketStatsResponse struct {
	TotalTickets   int64            `json:"total_tickets"`
	StatusCounts   map[string]int64 `json:"status_counts"`
	PriorityCounts map[string]int64 `json:"priority_counts"`
}

// TicketStatsFrom maps domain stats to the response shape.
func TicketStatsFrom(stats *domain.TicketStats) TicketStatsResponse {
	resp := TicketStatsResponse{
		TotalTickets:   stats.Total,
		StatusCounts:   make(map[string]int64, len(stats.ByStatus)),
		PriorityCounts: make(map[string]int64, len(stats.ByPriority)),
	}
	for status, count := range stats.ByStatus {
		resp.StatusCounts[string(status)] = count
	}
	for priority, count := range stats.ByPriority {
		resp.PriorityCounts[string(priority)] = count
	}
	return resp
}
