// Package worker drains the audit inbox channel into a store. It keeps
// background persistence testable without wiring queue implementations.
package worker

import (
	"context"
	"log/slog"

	audit "attesta/pkg/platform/audit"
)

type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run consumes events until ctx is cancelled. Persistence failures are
// logged and skipped; operations-category events are best-effort by design
// and the compliance path uses the synchronous publisher instead.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "audit append failed",
						"operation", event.Operation,
						"error", err,
					)
				}
			}
		}
	}
}
