package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/events"
)

// DeliveryService forwards domain events to outbound channels. Delivery
// is best effort: the durable Alert record is the contract, the channels
// here are a convenience on top of it.
type DeliveryService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewDeliveryService creates the service.
func NewDeliveryService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *DeliveryService {
	return &DeliveryService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (d *DeliveryService) RegisterHandlers() {
	if d.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventTicketStatusChanged,
		events.EventTicketPriorityChanged,
		events.EventSLAViolation,
		events.EventTicketMessageAdded,
		events.EventTicketUnassigned,
	} {
		d.dispatcher.Subscribe(eventType, d.handleEvent)
	}
}

func (d *DeliveryService) handleEvent(ctx context.Context, event events.Event) error {
	d.logger.Info("delivering event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	d.sendEmailStub(ctx, event)
	d.sendWebhookStub(ctx, event)
	return nil
}

func (d *DeliveryService) sendEmailStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(d.cfg.EmailFrom) == "" {
		return
	}
	d.logger.Debug("sendEmailStub",
		zap.String("from", d.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (d *DeliveryService) sendWebhookStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(d.cfg.WebhookURL) == "" {
		return
	}
	d.logger.Debug("sendWebhookStub",
		zap.String("url", d.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
