package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/chamados-service/internal/domain"
	"github.com/spec-kit/chamados-service/internal/events"
	"github.com/spec-kit/chamados-service/internal/observability"
	"github.com/spec-kit/chamados-service/internal/repository"
	apperrors "github.com/spec-kit/chamados-service/pkg/util/errorutil"
)

// LifecycleService enforces the ticket state machine:
//
//	OPEN -> IN_PROGRESS -> CONCLUDED | REJECTED
//	OPEN -> REJECTED
//
// Every transition is a single conditional update in the store, so two analysts
// claiming the same ticket can never both win.
type LifecycleService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// OpenTicketInput describes a ticket submitted by the intake workflow.
type OpenTicketInput struct {
	RequesterID int64
	Title       string
	Description string
	Category    string
	Priority    domain.TicketPriority
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// Open creates a ticket in the OPEN status.
func (s *LifecycleService) Open(ctx context.Context, input OpenTicketInput) (*domain.Ticket, error) {
	if input.RequesterID == 0 {
		return nil, apperrors.NewValidationError("requester required", nil)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	priority := domain.TicketPriorityMedium
	if input.Priority != "" {
		parsed, ok := domain.ParsePriority(string(input.Priority))
		if !ok {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
		}
		priority = parsed
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		RequesterID: input.RequesterID,
		OpenedAt:    s.now(),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	// Re-read for the display names the store resolves.
	if stored, err := s.tickets.GetByID(ctx, ticket.ID); err == nil {
		ticket = stored
	}
	s.metrics.RecordLifecycle("open", "ok")
	s.publishEvent(ctx, events.EventTicketCreated, ticket.ID, input.RequesterID, events.TicketCreatedPayload{
		Category: ticket.Category,
		Priority: ticket.Priority,
		Title:    ticket.Title,
	})
	return ticket, nil
}

// Get returns a ticket by id.
func (s *LifecycleService) Get(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, s.translate("get", ticketID, err)
	}
	return ticket, nil
}

// Claim assigns an OPEN ticket to analystID. Exactly one of several concurrent
// claims succeeds; the others receive ALREADY_CLAIMED.
func (s *LifecycleService) Claim(ctx context.Context, ticketID, analystID int64) (*domain.Ticket, error) {
	now := s.now()
	ticket, err := s.tickets.ConditionalUpdate(ctx, ticketID,
		[]domain.TicketStatus{domain.TicketStatusOpen},
		func(t *domain.Ticket) error {
			if t.AssigneeID != nil {
				return domain.ErrAlreadyClaimed
			}
			assignee := analystID
			t.Status = domain.TicketStatusInProgress
			t.AssigneeID = &assignee
			t.AssignedAt = &now
			return nil
		})
	if err != nil {
		return nil, s.fail("claim", ticketID, analystID, err)
	}

	s.succeed("claim", ticketID, analystID)
	s.publishEvent(ctx, events.EventTicketClaimed, ticketID, analystID, events.TicketStatusChangedPayload{
		OldStatus:  domain.TicketStatusOpen,
		NewStatus:  ticket.Status,
		AssigneeID: ticket.AssigneeID,
	})
	return ticket, nil
}

// Conclude closes an IN_PROGRESS ticket. Only the current assignee may conclude.
func (s *LifecycleService) Conclude(ctx context.Context, ticketID, analystID int64) (*domain.Ticket, error) {
	now := s.now()
	ticket, err := s.tickets.ConditionalUpdate(ctx, ticketID,
		[]domain.TicketStatus{domain.TicketStatusInProgress},
		func(t *domain.Ticket) error {
			if !t.IsAssignedTo(analystID) {
				return domain.ErrNotOwner
			}
			t.Status = domain.TicketStatusConcluded
			t.ClosedAt = closeTime(now, t.OpenedAt)
			return nil
		})
	if err != nil {
		return nil, s.fail("conclude", ticketID, analystID, err)
	}

	s.succeed("conclude", ticketID, analystID)
	s.publishEvent(ctx, events.EventTicketConcluded, ticketID, analystID, events.TicketStatusChangedPayload{
		OldStatus:  domain.TicketStatusInProgress,
		NewStatus:  ticket.Status,
		AssigneeID: ticket.AssigneeID,
	})
	return ticket, nil
}

// Reject closes an OPEN or IN_PROGRESS ticket. Any actor may reject; there is no
// ownership check.
func (s *LifecycleService) Reject(ctx context.Context, ticketID, actorID int64) (*domain.Ticket, error) {
	now := s.now()
	var oldStatus domain.TicketStatus
	ticket, err := s.tickets.ConditionalUpdate(ctx, ticketID,
		[]domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		func(t *domain.Ticket) error {
			oldStatus = t.Status
			t.Status = domain.TicketStatusRejected
			t.ClosedAt = closeTime(now, t.OpenedAt)
			return nil
		})
	if err != nil {
		return nil, s.fail("reject", ticketID, actorID, err)
	}

	s.succeed("reject", ticketID, actorID)
	s.publishEvent(ctx, events.EventTicketRejected, ticketID, actorID, events.TicketStatusChangedPayload{
		OldStatus:  oldStatus,
		NewStatus:  ticket.Status,
		AssigneeID: ticket.AssigneeID,
	})
	return ticket, nil
}

// Delete removes a ticket regardless of its status.
func (s *LifecycleService) Delete(ctx context.Context, ticketID, actorID int64) error {
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return s.fail("delete", ticketID, actorID, err)
	}
	s.succeed("delete", ticketID, actorID)
	s.publishEvent(ctx, events.EventTicketDeleted, ticketID, actorID, nil)
	return nil
}

// translate maps store and mutation failures onto the lifecycle error taxonomy.
func (s *LifecycleService) translate(operation string, ticketID int64, err error) error {
	details := map[string]any{"ticket_id": ticketID}

	var conflict *repository.ConflictError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apperrors.NewNotFound("ticket", details)
	case errors.Is(err, domain.ErrNotOwner):
		return apperrors.NewNotOwner(details)
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return apperrors.NewAlreadyClaimed(details)
	case errors.As(err, &conflict):
		details["status"] = conflict.Current
		if operation == "claim" && conflict.Current == domain.TicketStatusInProgress {
			return apperrors.NewAlreadyClaimed(details)
		}
		return apperrors.NewInvalidState(details)
	}
	return apperrors.MapError(err)
}

func (s *LifecycleService) fail(operation string, ticketID, actorID int64, err error) error {
	mapped := s.translate(operation, ticketID, err)
	domainErr := apperrors.ToDomainError(mapped)
	s.metrics.RecordLifecycle(operation, domainErr.Code)
	if domainErr.HTTPStatus >= 500 {
		s.logger.Error("ticket transition failed",
			zap.String("operation", operation),
			zap.Int64("ticket_id", ticketID),
			zap.Int64("actor_id", actorID),
			zap.Error(err))
	} else {
		s.logger.Debug("ticket transition refused",
			zap.String("operation", operation),
			zap.Int64("ticket_id", ticketID),
			zap.Int64("actor_id", actorID),
			zap.String("code", domainErr.Code))
	}
	return mapped
}

func (s *LifecycleService) succeed(operation string, ticketID, actorID int64) {
	s.metrics.RecordLifecycle(operation, "ok")
	s.logger.Info("ticket transition applied",
		zap.String("operation", operation),
		zap.Int64("ticket_id", ticketID),
		zap.Int64("actor_id", actorID))
}

func (s *LifecycleService) publishEvent(ctx context.Context, eventType events.EventType, ticketID, actorID int64, payload any) {
	if s.dispatcher == nil {
		return
	}
	actor := events.Actor{ID: actorID}
	if caller, ok := domain.ActorFromContext(ctx); ok && caller.ID == actorID {
		actor.Role = caller.Role
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: s.now(),
		Payload:   payload,
	})
}

// closeTime keeps closed_at >= opened_at even when clocks disagree between writers.
func closeTime(now, openedAt time.Time) *time.Time {
	if now.Before(openedAt) {
		now = openedAt
	}
	return &now
}
