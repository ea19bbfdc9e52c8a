package compliance

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "docverify/pkg/platform/audit"
	"docverify/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("disk full")
}

func TestPublisherEmit(t *testing.T) {
	fixed := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	t.Run("persists compliance events", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		metrics := NewMetrics(prometheus.NewRegistry())
		pub := New(store, WithMetrics(metrics), WithClock(func() time.Time { return fixed }))

		err := pub.Emit(context.Background(), audit.Event{
			Action:    string(audit.EventDecisionMade),
			SessionID: "sess-1",
			Decision:  "approved",
		})
		require.NoError(t, err)

		events, err := store.ListBySession(context.Background(), "sess-1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.Equal(t, fixed, events[0].Timestamp)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsEmitted))
	})

	t.Run("fails closed when the store fails", func(t *testing.T) {
		var buf bytes.Buffer
		metrics := NewMetrics(prometheus.NewRegistry())
		pub := New(failingStore{}, WithMetrics(metrics), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

		err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventDecisionMade), SessionID: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Contains(t, buf.String(), "compliance audit failed")
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PersistFailures))
	})

	t.Run("rejects non compliance events", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())
		err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventSessionFailed), SessionID: "s"})
		assert.Error(t, err)
	})

	t.Run("requires an action and a subject", func(t *testing.T) {
		pub := New(memory.NewInMemoryStore())
		assert.Error(t, pub.Emit(context.Background(), audit.Event{SessionID: "s"}))
		assert.Error(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventDecisionMade)}))
	})
}
