// Package kpi computes reporting indicators over a snapshot of tickets.
//
// Every function is pure: the same input always yields the same output and
// nothing is cached between calls.
package kpi

import (
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/spec-kit/chamados-service/internal/domain"
)

// OtherCategory collects tickets without a category.
const OtherCategory = "Other"

// StatusCounts maps each normalized status bucket to its ticket count.
type StatusCounts map[domain.TicketStatus]int

// Get returns the count for a bucket, zero when absent.
func (c StatusCounts) Get(status domain.TicketStatus) int {
	return c[status]
}

// AssigneeBreakdown summarises the workload of a single analyst.
type AssigneeBreakdown struct {
	AssigneeID   int64
	AssigneeName string
	Open         int
	InProgress   int
	Closed       int
}

// Snapshot is the full set of indicators for one query.
type Snapshot struct {
	Total                 int
	Counts                StatusCounts
	MeanResolutionHours   float64
	MedianResolutionHours float64
	SlaPercentage         float64
	ByAssignee            []AssigneeBreakdown
	ByCategory            map[string]int
	ByPriority            map[domain.TicketPriority]int
	GeneratedAt           time.Time
}

// Compute builds a Snapshot from the given tickets.
func Compute(tickets []domain.Ticket, now time.Time) Snapshot {
	return Snapshot{
		Total:                 len(tickets),
		Counts:                ComputeCounts(tickets),
		MeanResolutionHours:   MeanResolutionHours(tickets),
		MedianResolutionHours: MedianResolutionHours(tickets),
		SlaPercentage:         SlaPercentage(tickets),
		ByAssignee:            GroupByAssignee(tickets),
		ByCategory:            GroupByCategory(tickets),
		ByPriority:            GroupByPriority(tickets),
		GeneratedAt:           now,
	}
}

// ComputeCounts buckets tickets by normalized status. Unrecognized values land in OTHER.
func ComputeCounts(tickets []domain.Ticket) StatusCounts {
	counts := StatusCounts{
		domain.TicketStatusOpen:       0,
		domain.TicketStatusInProgress: 0,
		domain.TicketStatusConcluded:  0,
		domain.TicketStatusRejected:   0,
		domain.TicketStatusOther:      0,
	}
	for _, t := range tickets {
		counts[domain.NormalizeStatus(string(t.Status))]++
	}
	return counts
}

// MeanResolutionHours averages closed_at - opened_at over closed tickets; 0 when none.
func MeanResolutionHours(tickets []domain.Ticket) float64 {
	hours := resolutionHours(tickets)
	if len(hours) == 0 {
		return 0
	}
	return stat.Mean(hours, nil)
}

// MedianResolutionHours is the empirical median of resolution times; 0 when none.
func MedianResolutionHours(tickets []domain.Ticket) float64 {
	hours := resolutionHours(tickets)
	if len(hours) == 0 {
		return 0
	}
	sort.Float64s(hours)
	return stat.Quantile(0.5, stat.Empirical, hours, nil)
}

// SlaPercentage is closed / total * 100 over the whole input; 0 for an empty input.
func SlaPercentage(tickets []domain.Ticket) float64 {
	if len(tickets) == 0 {
		return 0
	}
	closed := 0
	for _, t := range tickets {
		if domain.NormalizeStatus(string(t.Status)).IsTerminal() {
			closed++
		}
	}
	return float64(closed) / float64(len(tickets)) * 100
}

// GroupByAssignee counts open, in-progress and closed tickets per assignee,
// ordered by assignee id. Unassigned tickets are skipped.
func GroupByAssignee(tickets []domain.Ticket) []AssigneeBreakdown {
	byID := make(map[int64]*AssigneeBreakdown)
	for _, t := range tickets {
		if t.AssigneeID == nil {
			continue
		}
		entry, ok := byID[*t.AssigneeID]
		if !ok {
			entry = &AssigneeBreakdown{AssigneeID: *t.AssigneeID}
			byID[*t.AssigneeID] = entry
		}
		if entry.AssigneeName == "" {
			entry.AssigneeName = t.AssigneeName
		}
		switch status := domain.NormalizeStatus(string(t.Status)); {
		case status == domain.TicketStatusOpen:
			entry.Open++
		case status == domain.TicketStatusInProgress:
			entry.InProgress++
		case status.IsTerminal():
			entry.Closed++
		}
	}

	result := make([]AssigneeBreakdown, 0, len(byID))
	for _, entry := range byID {
		result = append(result, *entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AssigneeID < result[j].AssigneeID
	})
	return result
}

// GroupByCategory counts tickets per category. Blank categories count as Other.
func GroupByCategory(tickets []domain.Ticket) map[string]int {
	result := make(map[string]int)
	for _, t := range tickets {
		category := strings.TrimSpace(t.Category)
		if category == "" {
			category = OtherCategory
		}
		result[category]++
	}
	return result
}

// GroupByPriority counts tickets per normalized priority.
func GroupByPriority(tickets []domain.Ticket) map[domain.TicketPriority]int {
	result := make(map[domain.TicketPriority]int)
	for _, t := range tickets {
		priority, ok := domain.ParsePriority(string(t.Priority))
		if !ok {
			priority = t.Priority
		}
		result[priority]++
	}
	return result
}

func resolutionHours(tickets []domain.Ticket) []float64 {
	hours := make([]float64, 0, len(tickets))
	for _, t := range tickets {
		if t.ClosedAt == nil {
			continue
		}
		hours = append(hours, t.ClosedAt.Sub(t.OpenedAt).Hours())
	}
	return hours
}
