package cache

import (
	"context"
	"errors"
	"log/slog"

	"docverify/internal/verification/metrics"
	"docverify/internal/verification/policy"
	"docverify/internal/verification/ports"
	"docverify/pkg/platform/sentinel"
)

// Store is a read-through policy store. Exact versions are immutable, so a
// cached Get is always current. Latest asks the backend, because a newer
// version may have been published, and serves the cached latest only while
// the backend is unavailable.
type Store struct {
	backend ports.PolicyStore
	cache   *Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore wraps backend with c.
func NewStore(backend ports.PolicyStore, c *Cache, opts ...Option) *Store {
	s := &Store{backend: backend, cache: c}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the underlying cache for invalidation.
func (s *Store) Cache() *Cache {
	return s.cache
}

func (s *Store) Get(ctx context.Context, id, version string) (*policy.Policy, error) {
	if p, ok := s.cache.Get(id, version); ok {
		s.metrics.IncrementCacheLookup(true)
		return p, nil
	}
	s.metrics.IncrementCacheLookup(false)

	p, err := s.backend.Get(ctx, id, version)
	if err != nil {
		return nil, err
	}
	s.cache.Put(p)
	return p, nil
}

func (s *Store) Latest(ctx context.Context, id string) (*policy.Policy, error) {
	p, err := s.backend.Latest(ctx, id)
	if err == nil {
		s.cache.Put(p)
		return p, nil
	}
	if !errors.Is(err, sentinel.ErrUnavailable) {
		return nil, err
	}

	cached, ok := s.cache.Latest(id)
	s.metrics.IncrementCacheLookup(ok)
	if !ok {
		return nil, err
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "policy store unavailable, serving cached latest",
			"policy_id", id,
			"policy_version", cached.Version,
			"error", err,
		)
	}
	return cached, nil
}
