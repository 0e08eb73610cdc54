package domain

import "time"

// TicketHistory is one applied lifecycle change. Entries are append-only and
// outlive the ticket they describe.
type TicketHistory struct {
	ID         int64
	TicketID   int64
	ActorID    int64
	Operation  string
	FromStatus TicketStatus
	ToStatus   TicketStatus
	AssigneeID *int64
	CreatedAt  time.Time
}
