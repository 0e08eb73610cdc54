package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/chamados-service/internal/domain"
	"github.com/spec-kit/chamados-service/internal/events"
	"github.com/spec-kit/chamados-service/internal/repository"
)

// NotificationService reacts to lifecycle events. Delivery to requesters is done by
// the external messaging module; this service logs every event and appends it to
// the ticket history.
type NotificationService struct {
	dispatcher events.Dispatcher
	history    repository.TicketHistoryRepository
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil history only logs.
func NewNotificationService(dispatcher events.Dispatcher, history repository.TicketHistoryRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		history:    history,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketClaimed, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketConcluded, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketRejected, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleTicketDeleted)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.Int64("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.record(ctx, event, &domain.TicketHistory{ToStatus: domain.TicketStatusOpen})
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged",
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.TicketID),
		zap.Int64("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload))

	entry := &domain.TicketHistory{}
	if payload, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		entry.FromStatus = payload.OldStatus
		entry.ToStatus = payload.NewStatus
		entry.AssigneeID = payload.AssigneeID
	}
	return n.record(ctx, event, entry)
}

func (n *NotificationService) handleTicketDeleted(ctx context.Context, event events.Event) error {
	n.logger.Warn("TicketDeleted", zap.Int64("ticket_id", event.TicketID), zap.Int64("actor_id", event.Actor.ID))
	return n.record(ctx, event, &domain.TicketHistory{})
}

func (n *NotificationService) record(ctx context.Context, event events.Event, entry *domain.TicketHistory) error {
	if n.history == nil {
		return nil
	}
	entry.TicketID = event.TicketID
	entry.ActorID = event.Actor.ID
	entry.Operation = string(event.Type)
	entry.CreatedAt = event.Timestamp
	return n.history.Append(ctx, entry)
}
