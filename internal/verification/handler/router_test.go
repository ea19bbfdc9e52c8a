package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
	"docverify/internal/verification/policy/store"
	"docverify/internal/verification/session"
	"docverify/pkg/platform/audit"
	"docverify/pkg/platform/audit/publishers/compliance"
	memorystore "docverify/pkg/platform/audit/store/memory"
	"docverify/pkg/platform/middleware/metadata"
	"docverify/pkg/platform/middleware/requesttime"
	"docverify/pkg/testutil"
)

func TestRouterScenario(t *testing.T) {
	testutil.Given(t, "a router with request metadata and a compliance trail", func(t *testing.T) {
		policies := store.NewInMemory()
		p, err := policy.ParseFile("../policy/testdata/loan_ltv.yaml")
		require.NoError(t, err)
		require.NoError(t, policies.Save(context.Background(), p))

		trail := memorystore.NewInMemoryStore()
		svc := session.New(policies, session.WithAuditPublisher(compliance.New(trail)))

		router := chi.NewRouter()
		router.Use(metadata.RequestMetadata)
		evaluatedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		router.Use(requesttime.WithClock(func() time.Time { return evaluatedAt }))
		New(svc, policies, nil).Register(router)

		testutil.When(t, "a session is submitted with a request id", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/verification/sessions", map[string]any{
				"policy_id": "loan_ltv",
				"version":   "1.2.0",
				"facts": []map[string]any{
					{"name": "loan_amount", "value": 9000000},
					{"name": "property_value", "value": 10000000},
				},
			})
			req.Header.Set(metadata.HeaderRequestID, "req-42")
			rec := testutil.DoRequest(router, req)

			testutil.Then(t, "the decision is returned and the request id echoed", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusOK)
				assert.Equal(t, "req-42", rec.Header().Get(metadata.HeaderRequestID))
				resp := testutil.UnmarshalResponse[SessionResponse](t, rec)
				assert.Equal(t, models.VerdictRejected, resp.Decision.Verdict)
				assert.True(t, resp.EvaluatedAt.Equal(evaluatedAt))

				testutil.And(t, "the audit event carries the same request id and time", func(t *testing.T) {
					events, err := trail.ListBySession(context.Background(), resp.SessionID)
					require.NoError(t, err)
					require.Len(t, events, 1)
					assert.Equal(t, string(audit.EventDecisionMade), events[0].Action)
					assert.Equal(t, "req-42", events[0].RequestID)
					assert.True(t, events[0].Timestamp.Equal(evaluatedAt))
				})
			})
		})

		testutil.When(t, "an unknown policy version is requested", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/verification/policies/loan_ltv/versions/9.0.0", nil))

			testutil.Then(t, "it responds not found", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
			})
		})
	})
}
