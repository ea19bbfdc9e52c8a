// Package session orchestrates one verification request end to end: it
// resolves the policy, builds the fact model, runs the rule engine and the
// consensus aggregator, and records the resulting Decision.
package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docverify/internal/verification/consensus"
	"docverify/internal/verification/facts"
	"docverify/internal/verification/metrics"
	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
	"docverify/internal/verification/ports"
	"docverify/internal/verification/rules"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/audit"
	"docverify/pkg/requestcontext"
)

// DefaultCollaboratorTimeout bounds extraction and classification calls.
const DefaultCollaboratorTimeout = 5 * time.Second

// Request is the input of one decision. Version may be empty to select the
// latest semantic version of the policy.
type Request struct {
	PolicyID string                    `json:"policy_id"`
	Version  string                    `json:"version,omitempty"`
	Facts    []facts.Raw               `json:"facts"`
	Signals  []models.ClassifierSignal `json:"signals"`
}

// Service runs verification sessions. It holds no per-session state, so one
// Service serves concurrent sessions. Each resolved policy is compiled once
// and reused by later sessions.
type Service struct {
	policies   ports.PolicyStore
	programs   *rules.Programs
	extractor  ports.Extractor
	classifier ports.Classifier

	auditPublisher ports.AuditPort
	opsAudit       ports.AuditPort
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	timeout        time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditPublisher sets the compliance publisher. A failed decision_made
// emission fails the session.
func WithAuditPublisher(p ports.AuditPort) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

// WithOpsAudit sets the best-effort publisher for operational events.
func WithOpsAudit(p ports.AuditPort) Option {
	return func(s *Service) {
		s.opsAudit = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithCollaborators enables VerifyDocument. classifier may be nil.
func WithCollaborators(extractor ports.Extractor, classifier ports.Classifier) Option {
	return func(s *Service) {
		s.extractor = extractor
		s.classifier = classifier
	}
}

func WithCollaboratorTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New constructs a Service.
func New(policies ports.PolicyStore, opts ...Option) *Service {
	s := &Service{
		policies: policies,
		programs: rules.NewPrograms(),
		timeout:  DefaultCollaboratorTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("docverify/verification/session")
	}
	return s
}

// Run produces exactly one Decision for req, or an error and no Decision.
// The session id is taken from the context when present.
func (s *Service) Run(ctx context.Context, req Request) (*models.Decision, error) {
	ctx, sessionID := ensureSessionID(ctx)
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "verification.session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("policy.id", req.PolicyID),
		))
	defer span.End()

	decision, p, err := s.decide(ctx, req)
	if err != nil {
		err = translate(err)
		s.recordFailure(ctx, sessionID, req.PolicyID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, errorCode(err))
		return nil, err
	}

	if s.auditPublisher != nil {
		event := audit.Event{
			Action:        string(audit.EventDecisionMade),
			Timestamp:     requestcontext.Now(ctx),
			SessionID:     sessionID,
			RequestID:     requestcontext.RequestID(ctx),
			PolicyID:      p.ID,
			PolicyVersion: p.Version,
			Decision:      string(decision.Verdict),
			Confidence:    decision.Confidence,
			Digest:        decision.Digest,
		}
		if err := s.auditPublisher.Emit(ctx, event); err != nil {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to record decision")
			s.recordFailure(ctx, sessionID, req.PolicyID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, errorCode(err))
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.String("policy.version", p.Version),
		attribute.String("decision.verdict", string(decision.Verdict)),
		attribute.Float64("decision.confidence", decision.Confidence),
	)
	s.metrics.IncrementVerdict(string(decision.Verdict), p.ID)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "verification decision",
			"session_id", sessionID,
			"request_id", requestcontext.RequestID(ctx),
			"policy_id", p.ID,
			"policy_version", p.Version,
			"verdict", decision.Verdict,
			"confidence", decision.Confidence,
			"blocking_failures", len(decision.BlockingFailures),
			"digest", decision.Digest,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return decision, nil
}

func ensureSessionID(ctx context.Context) (context.Context, string) {
	if id := requestcontext.SessionID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return requestcontext.WithSessionID(ctx, id), id
}

func (s *Service) decide(ctx context.Context, req Request) (*models.Decision, *policy.Policy, error) {
	policyID := strings.TrimSpace(req.PolicyID)
	if policyID == "" {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "policy_id is required")
	}
	if err := models.ValidateSignals(req.Signals); err != nil {
		return nil, nil, err
	}
	model, err := facts.FromRaw(req.Facts)
	if err != nil {
		return nil, nil, err
	}

	p, err := s.resolvePolicy(ctx, policyID, strings.TrimSpace(req.Version))
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	prog, err := s.programs.For(p)
	if err != nil {
		return nil, nil, err
	}
	outcomes, err := prog.Evaluate(model)
	if err != nil {
		return nil, nil, err
	}
	decision, err := consensus.AggregateProgram(prog, outcomes, req.Signals)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	return &decision, p, nil
}

func (s *Service) resolvePolicy(ctx context.Context, id, version string) (*policy.Policy, error) {
	ctx, span := s.tracer.Start(ctx, "verification.resolve_policy",
		trace.WithAttributes(attribute.String("policy.id", id), attribute.String("policy.requested_version", version)))
	defer span.End()

	if version == "" {
		return s.policies.Latest(ctx, id)
	}
	canonical, err := policy.CanonicalVersion(version)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "version must be a semantic version")
	}
	return s.policies.Get(ctx, id, canonical)
}

func (s *Service) recordFailure(ctx context.Context, sessionID, policyID string, err error) {
	code := errorCode(err)
	s.metrics.IncrementFailure(code)
	if s.logger != nil {
		level := slog.LevelWarn
		if code == string(dErrors.CodeInternal) || code == string(dErrors.CodeUnavailable) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "verification session failed",
			"session_id", sessionID,
			"request_id", requestcontext.RequestID(ctx),
			"policy_id", policyID,
			"code", code,
			"error", err,
		)
	}
	if s.opsAudit != nil {
		_ = s.opsAudit.Emit(ctx, audit.Event{
			Action:    string(audit.EventSessionFailed),
			Timestamp: requestcontext.Now(ctx),
			SessionID: sessionID,
			RequestID: requestcontext.RequestID(ctx),
			PolicyID:  policyID,
			Reason:    code,
		})
	}
}
