// Package outbox relays audit events from the Postgres outbox to the audit
// stream.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docverify/pkg/platform/audit/store/postgres"
)

// Source reads pending outbox entries.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]postgres.Entry, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

// Sink publishes encoded events.
type Sink interface {
	Publish(ctx context.Context, key, eventType string, payload []byte) error
}

// Relay moves entries from Source to Sink. Entries are marked only after
// the sink acknowledged them, so delivery is at least once.
type Relay struct {
	source   Source
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batch = n }
}

func New(source Source, sink Sink, opts ...Option) *Relay {
	r := &Relay{
		source:   source,
		sink:     sink,
		logger:   slog.Default(),
		interval: time.Second,
		batch:    100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays on every tick until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.WarnContext(ctx, "audit outbox relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were relayed.
// It stops at the first failure so ordering per key is preserved.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.source.FetchPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if err := r.sink.Publish(ctx, e.Key, e.EventType, e.Payload); err != nil {
			return i, err
		}
		if err := r.source.MarkPublished(ctx, e.ID); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}
