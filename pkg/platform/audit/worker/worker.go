package worker

import (
	"context"

	audit "docverify/pkg/platform/audit"
)

// ErrorHandler observes events the store failed to persist.
type ErrorHandler func(ctx context.Context, event audit.Event, err error)

// Worker consumes audit events from a channel and persists them. A failed
// write is reported to the error handler and does not stop the worker.
type Worker struct {
	store   audit.Store
	inbox   <-chan audit.Event
	onError ErrorHandler
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, onError ErrorHandler) *Worker {
	return &Worker{store: store, inbox: inbox, onError: onError}
}

// Run persists events until the inbox is closed and drained, or ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil && w.onError != nil {
				w.onError(ctx, event, err)
			}
		}
	}
}
