package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sow-service/internal/config"
	"github.com/spec-kit/sow-service/internal/events"
	"github.com/spec-kit/sow-service/internal/observability"
)

// Notification channels.
const (
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
)

// NotificationService turns committed scope-of-work events into outbound
// notifications. Delivery is stubbed; failures never reach the lifecycle.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes Handle to every scope-of-work event on the
// service's dispatcher. Delivery then runs inline with Publish.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.Handle)
	}
}

// Handle routes one event to its notification channels.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventScopeOfWorkContractor,
		events.EventScopeOfWorkAccepted,
		events.EventScopeOfWorkRefused,
		events.EventScopeOfWorkInReview,
		events.EventScopeOfWorkClosed:
		return n.handleContractorFacing(ctx, event)
	default:
		return n.handleWebhookOnly(ctx, event)
	}
}

func (n *NotificationService) handleWebhookOnly(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("scope_of_work_id", event.ScopeOfWorkID),
		zap.String("number", event.Number),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// handleContractorFacing covers the transitions a contractor has to hear about.
func (n *NotificationService) handleContractorFacing(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("scope_of_work_id", event.ScopeOfWorkID),
		zap.String("number", event.Number),
		zap.Any("payload", event.Payload))
	n.sendSMSNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendSMSNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.SMSFrom) == "" {
		return
	}
	n.logger.Debug("sendSMSNotificationStub",
		zap.String("from", n.cfg.SMSFrom),
		zap.String("scope_of_work_id", event.ScopeOfWorkID),
		zap.String("event_type", string(event.Type)))
	n.metrics.RecordNotification(ChannelSMS, observability.ResultSuccess)
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("scope_of_work_id", event.ScopeOfWorkID),
		zap.String("event_type", string(event.Type)))
	n.metrics.RecordNotification(ChannelWebhook, observability.ResultSuccess)
}
