package store

import (
	"context"
	"errors"
	"log/slog"

	"docverify/internal/verification/policy"
	"docverify/internal/verification/ports"
	"docverify/pkg/platform/circuit"
	"docverify/pkg/platform/sentinel"
)

// FallbackStore layers a primary store over a secondary one. The layers form
// one catalog: a version missing from the primary is looked up in the
// secondary, and Latest is the greatest version either layer holds. Only
// ErrUnavailable counts as a primary failure; while the circuit is open the
// primary is skipped until its cooldown allows a trial call.
type FallbackStore struct {
	primary   ports.PolicyStore
	secondary ports.PolicyStore
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

type FallbackOption func(*FallbackStore)

func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(s *FallbackStore) {
		s.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) FallbackOption {
	return func(s *FallbackStore) {
		if b != nil {
			s.breaker = b
		}
	}
}

// NewFallback combines primary and secondary behind a circuit breaker.
func NewFallback(primary, secondary ports.PolicyStore, opts ...FallbackOption) *FallbackStore {
	s := &FallbackStore{
		primary:   primary,
		secondary: secondary,
		breaker:   circuit.New("policy-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FallbackStore) Get(ctx context.Context, id, version string) (*policy.Policy, error) {
	p, primaryAnswered, err := s.callPrimary(ctx, id, func(st ports.PolicyStore) (*policy.Policy, error) {
		return st.Get(ctx, id, version)
	})
	if primaryAnswered && !errors.Is(err, sentinel.ErrNotFound) {
		return p, err
	}
	return s.secondary.Get(ctx, id, version)
}

func (s *FallbackStore) Latest(ctx context.Context, id string) (*policy.Policy, error) {
	p, primaryAnswered, err := s.callPrimary(ctx, id, func(st ports.PolicyStore) (*policy.Policy, error) {
		return st.Latest(ctx, id)
	})
	if !primaryAnswered {
		return s.secondary.Latest(ctx, id)
	}
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	q, serr := s.secondary.Latest(ctx, id)
	switch {
	case serr == nil:
	case errors.Is(serr, sentinel.ErrNotFound):
		return p, err
	case err == nil:
		if s.logger != nil {
			s.logger.WarnContext(ctx, "secondary policy store failed, using primary latest",
				"policy_id", id,
				"error", serr,
			)
		}
		return p, nil
	default:
		return nil, serr
	}
	if p == nil {
		return q, nil
	}
	return newer(p, q), nil
}

// callPrimary calls the primary unless the circuit rejects it. answered is
// false when the primary was skipped or unavailable.
func (s *FallbackStore) callPrimary(ctx context.Context, id string, call func(ports.PolicyStore) (*policy.Policy, error)) (p *policy.Policy, answered bool, err error) {
	if !s.breaker.Allow() {
		return nil, false, nil
	}
	p, err = call(s.primary)
	if err == nil || !errors.Is(err, sentinel.ErrUnavailable) {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logChange(ctx, "policy store circuit closed", id)
		}
		return p, true, err
	}

	_, change := s.breaker.RecordFailure()
	if change.Opened {
		s.logChange(ctx, "policy store circuit opened", id)
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "primary policy store unavailable, using fallback",
			"policy_id", id,
			"circuit", s.breaker.State().String(),
			"error", err,
		)
	}
	return nil, false, err
}

// newer returns the policy with the greater semantic version, p on a tie.
func newer(p, q *policy.Policy) *policy.Policy {
	if latest, ok := policy.Latest([]string{p.Version, q.Version}); ok && latest == q.Version && q.Version != p.Version {
		return q
	}
	return p
}

func (s *FallbackStore) logChange(ctx context.Context, msg, id string) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, "breaker", s.breaker.Name(), "policy_id", id)
	}
}
