package events

import (
	"time"

	"github.com/spec-kit/chamados-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketClaimed   EventType = "ticket_claimed"
	EventTicketConcluded EventType = "ticket_concluded"
	EventTicketRejected  EventType = "ticket_rejected"
	EventTicketDeleted   EventType = "ticket_deleted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   int64            `json:"id"`
	Role domain.ActorRole `json:"role,omitempty"`
}

// Event represents a lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category string                `json:"category,omitempty"`
	Priority domain.TicketPriority `json:"priority"`
	Title    string                `json:"title"`
}

// TicketStatusChangedPayload payload for claim, conclude and reject.
type TicketStatusChangedPayload struct {
	OldStatus  domain.TicketStatus `json:"old_status"`
	NewStatus  domain.TicketStatus `json:"new_status"`
	AssigneeID *int64              `json:"assignee_id,omitempty"`
}
