package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "docverify/pkg/platform/audit"
	txcontext "docverify/pkg/platform/tx"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := New(db)
	fixed := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s, mock, db
}

func TestAppend(t *testing.T) {
	s, mock, _ := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_outbox")).
		WithArgs(sqlmock.AnyArg(), "session", "sess-1", "decision_made", sqlmock.AnyArg(), s.now()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.Append(context.Background(), audit.Event{
		Action:    string(audit.EventDecisionMade),
		SessionID: "sess-1",
		Decision:  "approved",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendUsesContextTransaction(t *testing.T) {
	s, mock, db := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_outbox")).
		WithArgs(sqlmock.AnyArg(), "policy", "loan_ltv", "policy_published", sqlmock.AnyArg(), s.now()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), tx)
	require.NoError(t, s.Append(ctx, audit.Event{Action: string(audit.EventPolicyPublished), PolicyID: "loan_ltv"}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPendingAndMark(t *testing.T) {
	s, mock, _ := newMockStore(t)
	id := uuid.New()
	payload, err := json.Marshal(audit.Event{Action: "decision_made", SessionID: "sess-1"})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, aggregate_id, event_type, payload, created_at")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow(id.String(), "sess-1", "decision_made", payload, s.now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE audit_outbox SET published_at")).
		WithArgs(s.now(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entries, err := s.FetchPending(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, "sess-1", entries[0].Key)

	require.NoError(t, s.MarkPublished(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBySession(t *testing.T) {
	s, mock, _ := newMockStore(t)
	payload, err := json.Marshal(audit.Event{Action: "decision_made", SessionID: "sess-1", Digest: "abc"})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload")).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	events, err := s.ListBySession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "abc", events[0].Digest)
	assert.NoError(t, mock.ExpectationsWereMet())
}
