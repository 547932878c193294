package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// EventExporter ships lifecycle events out of the process.
type EventExporter interface {
	Export(ctx context.Context, event events.Event) error
}

// LivePusher delivers to currently connected users. Implementations drop
// silently when the target is offline.
type LivePusher interface {
	SendMessage(targetUserID string, message domain.Message) bool
	NotifyAssignment(targetUserID string, event events.Event) bool
}

// NotificationService fans domain events out to the exporter and the live
// delivery layer. Neither is required.
type NotificationService struct {
	dispatcher events.Dispatcher
	exporter   EventExporter
	live       LivePusher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, exporter EventExporter, live LivePusher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		exporter:   exporter,
		live:       live,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.LifecycleEvents {
		n.dispatcher.Subscribe(eventType, n.handleLifecycleEvent)
	}
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventMessageSent, n.handleMessageSent)
}

func (n *NotificationService) handleLifecycleEvent(ctx context.Context, event events.Event) error {
	n.logger.Debug("lifecycle event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	if n.exporter == nil {
		return nil
	}
	return n.exporter.Export(ctx, event)
}

func (n *NotificationService) handleTicketAssigned(_ context.Context, event events.Event) error {
	if n.live == nil {
		return nil
	}
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	delivered := n.live.NotifyAssignment(payload.HelpdeskID, event)
	n.logger.Debug("assignment pushed",
		zap.String("ticket_id", event.TicketID),
		zap.String("helpdesk_id", payload.HelpdeskID),
		zap.Bool("delivered", delivered))
	return nil
}

func (n *NotificationService) handleMessageSent(_ context.Context, event events.Event) error {
	if n.live == nil {
		return nil
	}
	payload, ok := event.Payload.(events.MessageSentPayload)
	if !ok {
		return nil
	}
	delivered := n.live.SendMessage(payload.Message.ReceiverID, payload.Message)
	n.logger.Debug("message pushed",
		zap.String("message_id", payload.Message.ID),
		zap.String("receiver_id", payload.Message.ReceiverID),
		zap.Bool("delivered", delivered))
	return nil
}
