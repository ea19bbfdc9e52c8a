// Package publish records new policy versions: the version is saved and a
// policy_published compliance event is emitted in one unit of work.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docverify/internal/verification/policy"
	"docverify/internal/verification/policy/cache"
	"docverify/internal/verification/ports"
	"docverify/pkg/platform/audit"
)

// Saver stores a policy version; stores canonicalize the version in place.
type Saver interface {
	Save(ctx context.Context, p *policy.Policy) error
}

// TxRunner runs fn inside a transaction carried by its context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher struct {
	store   Saver
	auditor ports.AuditPort
	tx      TxRunner
	cache   *cache.Cache
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Publisher)

// WithTx makes the save and the audit event atomic.
func WithTx(r TxRunner) Option {
	return func(p *Publisher) {
		p.tx = r
	}
}

// WithCache puts published versions into c.
func WithCache(c *cache.Cache) Option {
	return func(p *Publisher) {
		p.cache = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New constructs a Publisher. auditor should be fail-closed: an emission
// error aborts the publication.
func New(store Saver, auditor ports.AuditPort, opts ...Option) *Publisher {
	p := &Publisher{store: store, auditor: auditor, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish saves pol and records the publication.
func (p *Publisher) Publish(ctx context.Context, pol *policy.Policy) error {
	run := func(ctx context.Context) error {
		if err := p.store.Save(ctx, pol); err != nil {
			return err
		}
		if p.auditor == nil {
			return nil
		}
		return p.auditor.Emit(ctx, audit.Event{
			Action:        string(audit.EventPolicyPublished),
			Timestamp:     p.now(),
			PolicyID:      pol.ID,
			PolicyVersion: pol.Version,
		})
	}

	var err error
	if p.tx != nil {
		err = p.tx.RunInTx(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return fmt.Errorf("publish policy %s: %w", pol.Ref(), err)
	}

	if p.cache != nil {
		p.cache.Put(pol)
	}
	if p.logger != nil {
		p.logger.InfoContext(ctx, "policy published",
			"policy_id", pol.ID,
			"policy_version", pol.Version,
			"rules", len(pol.Rules),
		)
	}
	return nil
}

// Reload replaces the cached policy set and records the invalidation on the
// best-effort ops publisher.
func Reload(ctx context.Context, c *cache.Cache, policies []*policy.Policy, ops ports.AuditPort) {
	c.Replace(policies)
	if ops == nil {
		return
	}
	for _, pol := range policies {
		_ = ops.Emit(ctx, audit.Event{
			Action:        string(audit.EventPolicyInvalidated),
			PolicyID:      pol.ID,
			PolicyVersion: pol.Version,
			Reason:        "reload",
		})
	}
}
