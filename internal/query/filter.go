// Package query narrows ticket collections before presentation or aggregation.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/chamados-service/internal/domain"
)

// Order selects the output ordering of a filtered listing.
type Order string

const (
	OrderIDDesc     Order = "id_desc"
	OrderIDAsc      Order = "id_asc"
	OrderOpenedDesc Order = "opened_desc"
	OrderOpenedAsc  Order = "opened_asc"
)

// ParseOrder maps a query string to an Order, defaulting to OrderIDDesc.
func ParseOrder(raw string) (Order, bool) {
	switch Order(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return OrderIDDesc, true
	case OrderIDDesc:
		return OrderIDDesc, true
	case OrderIDAsc:
		return OrderIDAsc, true
	case OrderOpenedDesc:
		return OrderOpenedDesc, true
	case OrderOpenedAsc:
		return OrderOpenedAsc, true
	}
	return "", false
}

// Filter is a conjunction of optional predicates. Zero values match everything.
type Filter struct {
	// Search is a case-insensitive substring of title, requester or assignee name.
	Search   string
	Status   domain.TicketStatus
	Priority domain.TicketPriority
	// WithinDays keeps tickets opened in [now - N days, now].
	WithinDays int
	// AssignedTo restricts results to tickets owned by the current actor.
	AssignedTo *int64
	Order      Order
}

// SearchTerm returns the lowered, trimmed search string.
func (f Filter) SearchTerm() string {
	return strings.ToLower(strings.TrimSpace(f.Search))
}

// Since returns the lower bound of the date window, if any.
func (f Filter) Since(now time.Time) (time.Time, bool) {
	if f.WithinDays <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -f.WithinDays), true
}

// Matches reports whether the ticket satisfies every set predicate.
func (f Filter) Matches(t domain.Ticket, now time.Time) bool {
	if term := f.SearchTerm(); term != "" {
		if !containsFold(t.Title, term) && !containsFold(t.RequesterName, term) && !containsFold(t.AssigneeName, term) {
			return false
		}
	}
	if f.Status != "" && domain.NormalizeStatus(string(t.Status)) != domain.NormalizeStatus(string(f.Status)) {
		return false
	}
	if f.Priority != "" && !samePriority(t.Priority, f.Priority) {
		return false
	}
	if since, ok := f.Since(now); ok {
		if t.OpenedAt.Before(since) || t.OpenedAt.After(now) {
			return false
		}
	}
	if f.AssignedTo != nil && !t.IsAssignedTo(*f.AssignedTo) {
		return false
	}
	return true
}

// Apply returns the matching tickets in the requested order. The input is not modified.
func (f Filter) Apply(tickets []domain.Ticket, now time.Time) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if f.Matches(t, now) {
			out = append(out, t)
		}
	}
	Sort(out, f.Order)
	return out
}

// Sort orders tickets in place. Ties fall back to OpenedAt descending.
func Sort(tickets []domain.Ticket, order Order) {
	sort.SliceStable(tickets, func(i, j int) bool {
		a, b := tickets[i], tickets[j]
		switch order {
		case OrderIDAsc:
			if a.ID != b.ID {
				return a.ID < b.ID
			}
		case OrderOpenedDesc:
			if !a.OpenedAt.Equal(b.OpenedAt) {
				return a.OpenedAt.After(b.OpenedAt)
			}
			return a.ID > b.ID
		case OrderOpenedAsc:
			if !a.OpenedAt.Equal(b.OpenedAt) {
				return a.OpenedAt.Before(b.OpenedAt)
			}
			return a.ID < b.ID
		default:
			if a.ID != b.ID {
				return a.ID > b.ID
			}
		}
		return a.OpenedAt.After(b.OpenedAt)
	})
}

func containsFold(value, lowered string) bool {
	return value != "" && strings.Contains(strings.ToLower(value), lowered)
}

func samePriority(a, b domain.TicketPriority) bool {
	pa, okA := domain.ParsePriority(string(a))
	pb, okB := domain.ParsePriority(string(b))
	if okA && okB {
		return pa == pb
	}
	return strings.EqualFold(strings.TrimSpace(string(a)), strings.TrimSpace(string(b)))
}
