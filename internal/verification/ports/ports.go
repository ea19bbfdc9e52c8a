// Package ports declares the collaborators the verification session consumes.
// Adapters live with their infrastructure; the session depends only on these.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"docverify/internal/verification/facts"
	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
	"docverify/pkg/platform/audit"
)

// DocumentRef identifies a captured document held by the upstream pipeline.
// The core never sees document bytes.
type DocumentRef struct {
	ID       string `json:"id"`
	Type     string `json:"type,omitempty"`
	Location string `json:"location,omitempty"`
}

// PolicyStore resolves versioned policies. Implementations return
// sentinel.ErrNotFound for unknown ids or versions and sentinel.ErrUnavailable
// when the backend cannot be reached.
type PolicyStore interface {
	Get(ctx context.Context, id, version string) (*policy.Policy, error)
	Latest(ctx context.Context, id string) (*policy.Policy, error)
}

// Extractor returns the structured fields read from a document.
type Extractor interface {
	Extract(ctx context.Context, doc DocumentRef) ([]facts.Raw, error)
}

// Classifier returns the classification signals for a document.
type Classifier interface {
	Classify(ctx context.Context, doc DocumentRef) ([]models.ClassifierSignal, error)
}

// AuditPort emits audit events. It matches audit.Emitter.
type AuditPort interface {
	Emit(ctx context.Context, event audit.Event) error
}
