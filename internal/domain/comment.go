package domain

import "time"

// Comment captures an administrator reply on a ticket thread.
type Comment struct {
	ID        string
	TicketID  string
	UserID    string
	Content   string
	CreatedAt time.Time

	// Author fields are populated by list queries that join users.
	AuthorName  string
	AuthorEmail string
}
