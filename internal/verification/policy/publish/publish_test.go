package publish

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"docverify/internal/verification/policy"
	"docverify/internal/verification/policy/cache"
	"docverify/internal/verification/policy/store"
	"docverify/internal/verification/ports/mocks"
	"docverify/pkg/platform/audit"
	"docverify/pkg/platform/audit/publishers/compliance"
	pgaudit "docverify/pkg/platform/audit/store/postgres"
	"docverify/pkg/platform/sentinel"
	txcontext "docverify/pkg/platform/tx"
)

func newPolicy(version string) *policy.Policy {
	return &policy.Policy{
		ID:      "kyc",
		Version: version,
		Rules: []policy.Rule{{
			ID: "has_pan", Severity: policy.SeverityAdvisory, Weight: 1,
			Condition: policy.Condition{Op: policy.OpPresent, Fact: "pan"},
		}},
		Aggregation: policy.DefaultAggregationParams(),
	}
}

func TestPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("saves, audits and caches", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		auditor := mocks.NewMockAuditPort(ctrl)
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
			assert.Equal(t, string(audit.EventPolicyPublished), e.Action)
			assert.Equal(t, "kyc", e.PolicyID)
			assert.Equal(t, "1.2.0", e.PolicyVersion)
			return nil
		})
		c := cache.New()
		mem := store.NewInMemory()

		require.NoError(t, New(mem, auditor, WithCache(c)).Publish(ctx, newPolicy("v1.2")))
		_, ok := c.Get("kyc", "1.2.0")
		assert.True(t, ok)
	})

	t.Run("conflict is not audited", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		auditor := mocks.NewMockAuditPort(ctrl)
		auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(1)
		mem := store.NewInMemory()
		pub := New(mem, auditor)

		require.NoError(t, pub.Publish(ctx, newPolicy("1.0.0")))
		assert.ErrorIs(t, pub.Publish(ctx, newPolicy("1.0.0")), sentinel.ErrConflict)
	})
}

func TestPublishInTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO policies")).
		WithArgs("kyc", "1.0.0", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_outbox")).
		WithArgs(sqlmock.AnyArg(), "policy", "kyc", "policy_published", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("outbox full"))
	mock.ExpectRollback()

	pub := New(store.NewPostgres(db),
		compliance.New(pgaudit.New(db), compliance.WithClock(func() time.Time { return time.Unix(0, 0) })),
		WithTx(txcontext.NewRunner(db, 0)),
	)
	err = pub.Publish(context.Background(), newPolicy("1.0.0"))
	assert.ErrorContains(t, err, "compliance audit persistence failed")
	assert.NoError(t, mock.ExpectationsWereMet(), "a failed audit rolls the policy back")
}

func TestReload(t *testing.T) {
	ctrl := gomock.NewController(t)
	ops := mocks.NewMockAuditPort(ctrl)
	ops.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	c := cache.New()
	c.Put(newPolicy("0.1.0"))
	Reload(context.Background(), c, []*policy.Policy{newPolicy("1.0.0"), newPolicy("1.1.0")}, ops)

	assert.Equal(t, 2, c.Len())
	latest, ok := c.Latest("kyc")
	require.True(t, ok)
	assert.Equal(t, "1.1.0", latest.Version)
}
