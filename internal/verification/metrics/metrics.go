package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification sessions.
type Metrics struct {
	// Collaborator call latencies by source
	CollaboratorLatency *prometheus.HistogramVec

	// Verdicts by policy
	Verdicts *prometheus.CounterVec

	// Session failures by error code
	Failures *prometheus.CounterVec

	// Engine plus aggregator latency
	EvaluateLatency prometheus.Histogram

	// Policy cache lookups by result
	CacheLookups *prometheus.CounterVec
}

// New creates the session metrics registered on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the session metrics registered on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CollaboratorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docverify_collaborator_duration_seconds",
			Help:    "Duration of extraction and classification calls by source",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}), // source: "extractor", "classifier"

		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_verdicts_total",
			Help: "Decisions by verdict and policy",
		}, []string{"verdict", "policy_id"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_session_failures_total",
			Help: "Sessions that produced no decision, by error code",
		}, []string{"code"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docverify_evaluate_duration_seconds",
			Help:    "Duration of rule evaluation and aggregation",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_policy_cache_lookups_total",
			Help: "Policy cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss"
	}
}

// ObserveCollaboratorLatency records the duration of a collaborator call.
func (m *Metrics) ObserveCollaboratorLatency(source string, d time.Duration) {
	if m != nil {
		m.CollaboratorLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementVerdict records a decision.
func (m *Metrics) IncrementVerdict(verdict, policyID string) {
	if m != nil {
		m.Verdicts.WithLabelValues(verdict, policyID).Inc()
	}
}

// IncrementFailure records a session that ended in error.
func (m *Metrics) IncrementFailure(code string) {
	if m != nil {
		m.Failures.WithLabelValues(code).Inc()
	}
}

// ObserveEvaluateLatency records engine plus aggregator time.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

// IncrementCacheLookup records a policy cache hit or miss.
func (m *Metrics) IncrementCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
