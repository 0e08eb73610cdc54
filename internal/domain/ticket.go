package domain

import (
	"errors"
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusConcluded  TicketStatus = "CONCLUDED"
	TicketStatusRejected   TicketStatus = "REJECTED"

	// TicketStatusOther buckets stored values that match no known status.
	TicketStatusOther TicketStatus = "OTHER"
)

// IsTerminal reports whether no transition leaves the status.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusConcluded || s == TicketStatusRejected
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for support requests ("chamados").
type Ticket struct {
	ID            int64
	Title         string
	Description   string
	Category      string
	Priority      TicketPriority
	Status        TicketStatus
	RequesterID   int64
	RequesterName string
	AssigneeID    *int64
	AssigneeName  string
	OpenedAt      time.Time
	AssignedAt    *time.Time
	ClosedAt      *time.Time
}

// Clone returns a deep copy so callers never share pointer fields.
func (t Ticket) Clone() Ticket {
	out := t
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		out.AssigneeID = &id
	}
	if t.AssignedAt != nil {
		at := *t.AssignedAt
		out.AssignedAt = &at
	}
	if t.ClosedAt != nil {
		at := *t.ClosedAt
		out.ClosedAt = &at
	}
	return out
}

// IsAssignedTo reports whether analystID currently owns the ticket.
func (t Ticket) IsAssignedTo(analystID int64) bool {
	return t.AssigneeID != nil && *t.AssigneeID == analystID
}

// Validate checks the lifecycle invariants between status, assignment and close time.
func (t Ticket) Validate() error {
	if t.RequesterID == 0 {
		return errors.New("ticket requester required")
	}
	switch t.Status {
	case TicketStatusOpen:
		if t.AssigneeID != nil || t.AssignedAt != nil {
			return errors.New("open ticket cannot have an assignee")
		}
		if t.ClosedAt != nil {
			return errors.New("open ticket cannot be closed")
		}
	case TicketStatusInProgress:
		if t.AssigneeID == nil || t.AssignedAt == nil {
			return errors.New("in-progress ticket requires an assignee")
		}
		if t.ClosedAt != nil {
			return errors.New("in-progress ticket cannot be closed")
		}
	case TicketStatusConcluded, TicketStatusRejected:
		if t.ClosedAt == nil {
			return fmt.Errorf("%s ticket requires closed_at", t.Status)
		}
		if t.ClosedAt.Before(t.OpenedAt) {
			return errors.New("closed_at precedes opened_at")
		}
		if (t.AssigneeID == nil) != (t.AssignedAt == nil) {
			return errors.New("assignee and assigned_at must be set together")
		}
	default:
		return fmt.Errorf("unknown ticket status %q", t.Status)
	}
	return nil
}
