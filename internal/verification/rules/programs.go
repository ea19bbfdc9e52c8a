package rules

import (
	"sync"

	"docverify/internal/verification/policy"
)

type programKey struct {
	id      string
	version string
}

// Programs memoizes compiled policies so a policy is validated and compiled
// once per process rather than once per session. An entry is reused only for
// the same *policy.Policy it was compiled from; a store handing out a fresh
// copy of a version gets that copy compiled and remembered instead.
// Programs is safe for concurrent use.
type Programs struct {
	mu    sync.RWMutex
	byRef map[programKey]*Program
}

// NewPrograms returns an empty memo.
func NewPrograms() *Programs {
	return &Programs{byRef: make(map[programKey]*Program)}
}

// For returns the compiled program for p, compiling on first use. A policy
// that fails validation is not remembered.
func (c *Programs) For(p *policy.Policy) (*Program, error) {
	if p == nil {
		return Compile(p)
	}
	key := programKey{id: p.ID, version: p.Version}

	c.mu.RLock()
	prog, ok := c.byRef[key]
	c.mu.RUnlock()
	if ok && prog.policy == p {
		return prog, nil
	}

	prog, err := Compile(p)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if existing, ok := c.byRef[key]; ok && existing.policy == p {
		prog = existing
	} else {
		c.byRef[key] = prog
	}
	c.mu.Unlock()
	return prog, nil
}

// Len returns the number of remembered programs.
func (c *Programs) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byRef)
}
