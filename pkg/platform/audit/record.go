package audit

//go:generate mockgen -source=record.go -destination=mocks/mocks.go -package=mocks Publisher

import (
	"context"
	"log/slog"

	id "sharereg/pkg/domain"
	"sharereg/pkg/requestcontext"
)

// Publisher is the port services emit audit events through.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Record builds an event for the current caller and emits it. Audit is
// fire-and-forget: a failed emit is logged and never fails the caller's
// operation. A nil publisher only logs.
func Record(ctx context.Context, pub Publisher, logger *slog.Logger, tenantID id.TenantID, action Action, entity EntityType, entityID string, payload any) {
	event := Event{
		Timestamp:  requestcontext.Now(ctx),
		TenantID:   tenantID,
		ActorID:    requestcontext.UserID(ctx),
		Action:     action,
		EntityType: entity,
		EntityID:   entityID,
		Diff:       Diff(payload),
		RequestID:  requestcontext.RequestID(ctx),
	}
	if logger != nil {
		logger.InfoContext(ctx, string(action),
			"log_type", "audit",
			"tenant_id", tenantID,
			"actor_id", event.ActorID,
			"entity_type", entity,
			"entity_id", entityID,
			"request_id", event.RequestID,
		)
	}
	if pub == nil {
		return
	}
	if err := pub.Emit(context.WithoutCancel(ctx), event); err != nil && logger != nil {
		logger.ErrorContext(ctx, "failed to emit audit event",
			"error", err,
			"action", action,
			"entity_type", entity,
			"entity_id", entityID,
		)
	}
}
