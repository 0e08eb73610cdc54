package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/chamados-service/internal/domain"
	"github.com/spec-kit/chamados-service/internal/kpi"
	"github.com/spec-kit/chamados-service/internal/query"
	"github.com/spec-kit/chamados-service/internal/repository"
	apperrors "github.com/spec-kit/chamados-service/pkg/util/errorutil"
)

// ReportService serves filtered listings and KPI snapshots. It only reads, so it
// never contends with lifecycle updates beyond the store's per-record locking.
type ReportService struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	now     func() time.Time
}

// NewReportService constructs the service. A nil clock defaults to time.Now.
func NewReportService(tickets repository.TicketRepository, history repository.TicketHistoryRepository, clock func() time.Time) *ReportService {
	if clock == nil {
		clock = time.Now
	}
	return &ReportService{tickets: tickets, history: history, now: clock}
}

// ListFiltered returns the tickets matching filter in the requested order. The
// WithinDays window is measured from the service clock.
func (s *ReportService) ListFiltered(ctx context.Context, filter query.Filter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter, s.now())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ComputeKpis aggregates an already selected set of tickets.
func (s *ReportService) ComputeKpis(tickets []domain.Ticket) kpi.Snapshot {
	return kpi.Compute(tickets, s.now())
}

// Kpis filters then aggregates in one call.
func (s *ReportService) Kpis(ctx context.Context, filter query.Filter) (kpi.Snapshot, error) {
	tickets, err := s.ListFiltered(ctx, filter)
	if err != nil {
		return kpi.Snapshot{}, err
	}
	return s.ComputeKpis(tickets), nil
}

// History returns the audit trail of a ticket, oldest first. Deleted tickets keep
// their history; a ticket that never existed is NOT_FOUND.
func (s *ReportService) History(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return nil, apperrors.NewNotFound("ticket history", map[string]any{"ticket_id": ticketID})
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(entries) > 0 {
		return entries, nil
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}
