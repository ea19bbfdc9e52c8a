// Package publisher emits best-effort operational audit events. In async
// mode events are buffered and persisted by a background worker; a full
// buffer drops the event rather than blocking the caller.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "docverify/pkg/platform/audit"
	"docverify/pkg/platform/audit/worker"
)

// ErrBufferFull is returned when the async buffer cannot take the event.
var ErrBufferFull = errors.New("audit buffer full")

// Store persists events and lists them by session.
type Store interface {
	audit.Store
	ListBySession(ctx context.Context, sessionID string) ([]audit.Event, error)
}

type Publisher struct {
	store  Store
	logger *slog.Logger
	buffer int

	mu     sync.RWMutex
	closed bool
	inbox  chan audit.Event
	done   chan struct{}
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.inbox = make(chan audit.Event, p.buffer)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.inbox, p.logFailure)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records an event. In sync mode the store error is returned; in async
// mode only buffering errors are.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("audit publisher closed")
	}
	select {
	case p.inbox <- event:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"session_id", event.SessionID,
		)
	}
	return ErrBufferFull
}

// List returns the events recorded for a session.
func (p *Publisher) List(ctx context.Context, sessionID string) ([]audit.Event, error) {
	return p.store.ListBySession(ctx, sessionID)
}

// Close stops accepting events and waits until buffered events are persisted.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		if p.inbox == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
		<-p.done
	})
	return nil
}

func (p *Publisher) logFailure(ctx context.Context, event audit.Event, err error) {
	if p.logger != nil {
		p.logger.ErrorContext(ctx, "audit event persistence failed",
			"action", event.Action,
			"session_id", event.SessionID,
			"error", err,
		)
	}
}
