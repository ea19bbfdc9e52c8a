package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docverify/internal/verification/policy"
	"docverify/pkg/platform/sentinel"
)

// InMemoryStore keeps policies in process memory. Policies are treated as
// immutable once saved.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[string]map[string]*policy.Policy
}

// NewInMemory returns an empty store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{policies: make(map[string]map[string]*policy.Policy)}
}

// Save stores p. An existing id and version is a conflict.
func (s *InMemoryStore) Save(_ context.Context, p *policy.Policy) error {
	if err := prepare(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.policies[p.ID]
	if !ok {
		versions = make(map[string]*policy.Policy)
		s.policies[p.ID] = versions
	}
	if _, exists := versions[p.Version]; exists {
		return fmt.Errorf("policy %s: %w", p.Ref(), sentinel.ErrConflict)
	}
	versions[p.Version] = p
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id, version string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id][version]
	if !ok {
		return nil, fmt.Errorf("policy %s@%s: %w", id, version, sentinel.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryStore) Latest(_ context.Context, id string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.policies[id]
	keys := make([]string, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	latest, ok := policy.Latest(keys)
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, sentinel.ErrNotFound)
	}
	return versions[latest], nil
}

// List returns every stored policy ordered by id then version string.
func (s *InMemoryStore) List(_ context.Context) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*policy.Policy
	for _, versions := range s.policies {
		for _, p := range versions {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}
