package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/chamados-service/internal/events"
	"github.com/spec-kit/chamados-service/internal/service"
)

const deliveryTimeout = 2 * time.Second

// ErrQueueFull is returned to the dispatcher when an event cannot be buffered.
var ErrQueueFull = errors.New("notification queue full")

// NotificationWorker registers the in-process notification handlers and drains
// events bound for external consumers on a background goroutine, so a slow broker
// never holds up a lifecycle request.
type NotificationWorker struct {
	notifications *service.NotificationService
	forward       events.EventHandler
	queue         chan events.Event
	logger        *zap.Logger
	done          chan struct{}
}

// NewNotificationWorker builds the worker. forward may be nil when no external
// broker is configured.
func NewNotificationWorker(notifications *service.NotificationService, forward events.EventHandler, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		notifications: notifications,
		forward:       forward,
		queue:         make(chan events.Event, queueSize),
		logger:        logger,
		done:          make(chan struct{}),
	}
}

// Start subscribes to the dispatcher and launches the forwarding loop. The loop
// stops when ctx is cancelled, after flushing what is already queued.
func (w *NotificationWorker) Start(ctx context.Context, dispatcher events.Dispatcher) {
	if w.notifications != nil {
		w.notifications.RegisterHandlers()
	}
	if w.forward == nil {
		close(w.done)
		return
	}
	for _, eventType := range events.AllEventTypes() {
		dispatcher.Subscribe(eventType, w.enqueue)
	}
	go w.run(ctx)
}

// Wait blocks until the forwarding loop has exited.
func (w *NotificationWorker) Wait() {
	<-w.done
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s for ticket %d", ErrQueueFull, event.Type, event.TicketID)
	}
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case event := <-w.queue:
			w.deliver(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-w.queue:
					w.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (w *NotificationWorker) deliver(event events.Event) {
	// Request contexts are gone by now; deliveries get their own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := w.forward(ctx, event); err != nil {
		w.logger.Warn("event forwarding failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
