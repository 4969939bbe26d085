package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/pantry-service/internal/events"
)

// EventRecorder counts security events. observability.Metrics satisfies it.
type EventRecorder interface {
	RecordAuthEvent(eventType string)
}

// AuditService writes every security event to the audit log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	recorder   EventRecorder
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, recorder EventRecorder) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		recorder:   recorder,
	}
}

// RegisterHandlers subscribes to every event type.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		a.dispatcher.Subscribe(eventType, a.handle)
	}
}

func (a *AuditService) handle(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Time("at", event.Timestamp),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if len(event.Payload) > 0 {
		fields = append(fields, zap.Any("payload", event.Payload))
	}

	switch event.Type {
	case events.EventLoginFailed, events.EventRefreshRejected, events.EventRateLimited:
		a.logger.Warn("security event", fields...)
	default:
		a.logger.Info("security event", fields...)
	}

	if a.recorder != nil {
		a.recorder.RecordAuthEvent(string(event.Type))
	}
	return nil
}
