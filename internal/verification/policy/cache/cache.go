// Package cache holds the process-wide, read-only view of loaded policies.
//
// Readers never lock: the cache is an atomic pointer to an immutable
// snapshot. Put, Invalidate and Replace build a new snapshot and swap it in
// with compare-and-swap, retrying when a concurrent update won.
package cache

import (
	"sync/atomic"

	"docverify/internal/verification/policy"
)

type snapshot struct {
	// byID maps policy id to version to policy.
	byID map[string]map[string]*policy.Policy
	// latest maps policy id to its greatest semantic version.
	latest map[string]string
}

var emptySnapshot = &snapshot{
	byID:   map[string]map[string]*policy.Policy{},
	latest: map[string]string{},
}

// Cache is safe for concurrent use. Policies handed to it must not be
// modified afterwards.
type Cache struct {
	snap atomic.Pointer[snapshot]
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{}
	c.snap.Store(emptySnapshot)
	return c
}

// Get returns the cached policy for id at an exact canonical version.
func (c *Cache) Get(id, version string) (*policy.Policy, bool) {
	versions, ok := c.snap.Load().byID[id]
	if !ok {
		return nil, false
	}
	p, ok := versions[version]
	return p, ok
}

// Latest returns the cached policy with the greatest version for id.
func (c *Cache) Latest(id string) (*policy.Policy, bool) {
	s := c.snap.Load()
	v, ok := s.latest[id]
	if !ok {
		return nil, false
	}
	p, ok := s.byID[id][v]
	return p, ok
}

// Len returns the number of cached policy versions.
func (c *Cache) Len() int {
	n := 0
	for _, versions := range c.snap.Load().byID {
		n += len(versions)
	}
	return n
}

// Put adds or replaces one policy version.
func (c *Cache) Put(p *policy.Policy) {
	c.update(func(s *snapshot) *snapshot {
		next := s.clone()
		versions := make(map[string]*policy.Policy, len(s.byID[p.ID])+1)
		for v, existing := range s.byID[p.ID] {
			versions[v] = existing
		}
		versions[p.Version] = p
		next.byID[p.ID] = versions
		next.latest[p.ID] = latestOf(versions)
		return next
	})
}

// Invalidate drops every cached version of id.
func (c *Cache) Invalidate(id string) {
	c.update(func(s *snapshot) *snapshot {
		if _, ok := s.byID[id]; !ok {
			return s
		}
		next := s.clone()
		delete(next.byID, id)
		delete(next.latest, id)
		return next
	})
}

// Replace swaps in a snapshot holding exactly ps.
func (c *Cache) Replace(ps []*policy.Policy) {
	next := &snapshot{
		byID:   make(map[string]map[string]*policy.Policy),
		latest: make(map[string]string),
	}
	for _, p := range ps {
		if next.byID[p.ID] == nil {
			next.byID[p.ID] = make(map[string]*policy.Policy)
		}
		next.byID[p.ID][p.Version] = p
	}
	for id, versions := range next.byID {
		next.latest[id] = latestOf(versions)
	}
	c.snap.Store(next)
}

func (c *Cache) update(fn func(*snapshot) *snapshot) {
	for {
		old := c.snap.Load()
		next := fn(old)
		if next == old || c.snap.CompareAndSwap(old, next) {
			return
		}
	}
}

// clone copies the top-level maps; per-id version maps are shared until
// replaced.
func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		byID:   make(map[string]map[string]*policy.Policy, len(s.byID)+1),
		latest: make(map[string]string, len(s.latest)+1),
	}
	for id, versions := range s.byID {
		next.byID[id] = versions
	}
	for id, v := range s.latest {
		next.latest[id] = v
	}
	return next
}

func latestOf(versions map[string]*policy.Policy) string {
	keys := make([]string, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	latest, _ := policy.Latest(keys)
	return latest
}
