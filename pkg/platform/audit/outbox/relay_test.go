package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/pkg/platform/audit/store/postgres"
)

type fakeSource struct {
	entries   []postgres.Entry
	published []uuid.UUID
}

func (f *fakeSource) FetchPending(_ context.Context, limit int) ([]postgres.Entry, error) {
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeSource) MarkPublished(_ context.Context, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

type fakeSink struct {
	keys   []string
	failOn string
}

func (f *fakeSink) Publish(_ context.Context, key, _ string, _ []byte) error {
	if key == f.failOn {
		return errors.New("broker down")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestRelayOnce(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	entries := []postgres.Entry{
		{ID: a, Key: "s1", EventType: "decision_made"},
		{ID: b, Key: "s2", EventType: "decision_made"},
		{ID: c, Key: "s3", EventType: "decision_made"},
	}

	t.Run("publishes and marks every entry", func(t *testing.T) {
		src := &fakeSource{entries: entries}
		sink := &fakeSink{}
		n, err := New(src, sink).RelayOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []string{"s1", "s2", "s3"}, sink.keys)
		assert.Equal(t, []uuid.UUID{a, b, c}, src.published)
	})

	t.Run("stops at the first failure without marking it", func(t *testing.T) {
		src := &fakeSource{entries: entries}
		sink := &fakeSink{failOn: "s2"}
		n, err := New(src, sink).RelayOnce(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []uuid.UUID{a}, src.published)
	})

	t.Run("respects the batch size", func(t *testing.T) {
		src := &fakeSource{entries: entries}
		n, err := New(src, &fakeSink{}, WithBatchSize(2)).RelayOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}
