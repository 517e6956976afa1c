package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-bot/internal/events"
)

// NotificationService turns domain events into bulk platform notifications.
// Delivery goes through the fan-out engine so many recipients never trip
// rate limits, and runs off the caller's goroutine: a slow notification
// never blocks a lifecycle transition.
type NotificationService struct {
	fanout *FanOutService
	admins *AdminService
	logger *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(fanout *FanOutService, admins *AdminService, logger *zap.Logger) *NotificationService {
	return &NotificationService{fanout: fanout, admins: admins, logger: logger}
}

// RegisterHandlers subscribes to the events that trigger notifications.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	admins, err := n.admins.EffectiveAdmins(ctx, payload.TicketType)
	if err != nil {
		return err
	}
	content := fmt.Sprintf("New %s ticket #%d opened.", payload.TicketType, payload.Number)

	go func() {
		outcome := n.fanout.FanOut(context.Background(), OpNotify, event.TicketID, content, admins)
		n.logger.Info("ticket-created notifications dispatched",
			zap.Int64("number", payload.Number),
			zap.Int("succeeded", len(outcome.Succeeded)),
			zap.Int("failed", len(outcome.Failed)))
	}()
	return nil
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClosedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("ticket closed",
		zap.Int64("number", payload.Number),
		zap.String("closed_by", payload.ClosedBy),
		zap.String("reason", payload.Reason))
	return nil
}
