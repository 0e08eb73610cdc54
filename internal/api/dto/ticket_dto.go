package dto

import "time"

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Category    string `json:"category" validate:"max=100"`
	Priority    string `json:"priority" validate:"max=20"`
}

// TicketListQuery captures listing and KPI filters.
type TicketListQuery struct {
	Search   string `query:"search" validate:"max=200"`
	Status   string `query:"status" validate:"max=40"`
	Priority string `query:"priority" validate:"max=20"`
	Days     int    `query:"days" validate:"gte=0,lte=3650"`
	Mine     bool   `query:"mine"`
	Order    string `query:"order" validate:"max=20"`
}

// TicketResponse keeps the field names the existing front ends consume.
type TicketResponse struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Category       string     `json:"category"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	AssignedTo     *string    `json:"assignedTo"`
	AssignedToID   *int64     `json:"assignedToId"`
	Solicitante    string     `json:"solicitante"`
	DataAbertura   time.Time  `json:"dataAbertura"`
	DataAtribuicao *time.Time `json:"dataAtribuicao"`
	DataFechamento *time.Time `json:"dataFechamento"`
	Description    string     `json:"description"`
}

// AssigneeBreakdownResponse is one analyst's workload.
type AssigneeBreakdownResponse struct {
	AssigneeID   int64  `json:"assignee_id"`
	AssigneeName string `json:"assignee_name,omitempty"`
	Open         int    `json:"open"`
	InProgress   int    `json:"in_progress"`
	Closed       int    `json:"closed"`
}

// KpiResponse is the reporting snapshot.
type KpiResponse struct {
	Total                 int                         `json:"total"`
	Counts                map[string]int              `json:"counts"`
	MeanResolutionHours   float64                     `json:"mean_resolution_hours"`
	MedianResolutionHours float64                     `json:"median_resolution_hours"`
	SlaPercentage         float64                     `json:"sla_percentage"`
	ByAssignee            []AssigneeBreakdownResponse `json:"by_assignee"`
	ByCategory            map[string]int              `json:"by_category"`
	ByPriority            map[string]int              `json:"by_priority"`
	GeneratedAt           time.Time                   `json:"generated_at"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	ActorID    int64     `json:"actor_id"`
	Operation  string    `json:"operation"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	AssigneeID *int64    `json:"assignee_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
