package audit

import (
	"context"
	"fmt"
	"log/slog"
)

// SyncPublisher writes events straight to the store with fail-closed
// semantics: if the audit record cannot be persisted, the calling operation
// must fail. Use for compliance-category operations (claim issuance,
// revocation, identity status changes).
type SyncPublisher struct {
	store  Store
	logger *slog.Logger
}

// NewSyncPublisher creates a fail-closed publisher backed by store.
func NewSyncPublisher(store Store, logger *slog.Logger) *SyncPublisher {
	return &SyncPublisher{store: store, logger: logger}
}

func (p *SyncPublisher) Emit(ctx context.Context, event Event) error {
	if event.Operation == "" {
		return fmt.Errorf("audit event requires an operation")
	}
	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit persistence failed",
				"operation", event.Operation,
				"address", event.Address,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}
	return nil
}

// InboxPublisher hands events to a background worker through a bounded
// channel. Used for operations-category events where losing an event under
// backpressure is preferable to blocking the request path.
type InboxPublisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewInboxPublisher(inbox chan<- Event, logger *slog.Logger) *InboxPublisher {
	return &InboxPublisher{inbox: inbox, logger: logger}
}

func (p *InboxPublisher) Emit(ctx context.Context, event Event) error {
	select {
	case p.inbox <- event:
		return nil
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit inbox full, dropping event",
				"operation", event.Operation,
				"address", event.Address,
			)
		}
		return nil
	}
}
