package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docverify/internal/verification/facts"
	"docverify/internal/verification/models"
	"docverify/internal/verification/ports"
	dErrors "docverify/pkg/domain-errors"
)

// ClassifierFactPrefix names the category facts derived from classifier labels.
const ClassifierFactPrefix = "classifier:"

// DocumentRequest asks the session to gather evidence for a document from the
// configured collaborators before deciding.
type DocumentRequest struct {
	PolicyID string            `json:"policy_id"`
	Version  string            `json:"version,omitempty"`
	Document ports.DocumentRef `json:"document"`
	// Facts supplied by the caller in addition to the extracted ones.
	Facts []facts.Raw `json:"facts,omitempty"`
	// ClassifierFacts also exposes each signal's label as a
	// "classifier:<name>" category fact, so rules can test it.
	ClassifierFacts bool `json:"classifier_facts,omitempty"`
}

// gatheredEvidence holds the collaborator outputs of one document.
type gatheredEvidence struct {
	Facts   []facts.Raw
	Signals []models.ClassifierSignal
}

// VerifyDocument calls the extractor and classifier concurrently under the
// collaborator timeout, then decides over the merged evidence.
func (s *Service) VerifyDocument(ctx context.Context, req DocumentRequest) (*models.Decision, error) {
	if s.extractor == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "document extraction is not configured")
	}
	if strings.TrimSpace(req.Document.ID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document.id is required")
	}

	ctx, sessionID := ensureSessionID(ctx)
	evidence, err := s.gatherEvidence(ctx, req.Document)
	if err != nil {
		s.recordFailure(ctx, sessionID, req.PolicyID, err)
		return nil, err
	}

	raw := make([]facts.Raw, 0, len(req.Facts)+len(evidence.Facts)+len(evidence.Signals))
	raw = append(raw, req.Facts...)
	raw = append(raw, evidence.Facts...)
	if req.ClassifierFacts {
		for _, sig := range evidence.Signals {
			raw = append(raw, facts.Raw{
				Name:       ClassifierFactPrefix + sig.Name,
				Value:      sig.Label,
				Kind:       facts.KindCategory,
				Provenance: ClassifierFactPrefix + sig.Name,
			})
		}
	}

	return s.Run(ctx, Request{
		PolicyID: req.PolicyID,
		Version:  req.Version,
		Facts:    raw,
		Signals:  evidence.Signals,
	})
}

// gatherEvidence orchestrates parallel collaborator calls with shared context cancellation.
func (s *Service) gatherEvidence(ctx context.Context, doc ports.DocumentRef) (*gatheredEvidence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	evidence := &gatheredEvidence{}

	g.Go(func() error {
		start := time.Now()
		extracted, err := s.extractor.Extract(ctx, doc)
		s.metrics.ObserveCollaboratorLatency("extractor", time.Since(start))
		if err != nil {
			return collaboratorError("extractor", err)
		}
		for i := range extracted {
			if extracted[i].Provenance == "" {
				extracted[i].Provenance = "ocr:" + extracted[i].Name
			}
		}
		evidence.Facts = extracted
		return nil
	})

	if s.classifier != nil {
		g.Go(func() error {
			start := time.Now()
			signals, err := s.classifier.Classify(ctx, doc)
			s.metrics.ObserveCollaboratorLatency("classifier", time.Since(start))
			if err != nil {
				return collaboratorError("classifier", err)
			}
			evidence.Signals = signals
			return nil
		})
	}

	// Wait for all goroutines with early cancellation on first failure
	if err := g.Wait(); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "evidence gathering failed",
				"document_id", doc.ID,
				"error", err,
			)
		}
		return nil, err
	}
	return evidence, nil
}

func collaboratorError(source string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, source+" timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, source+" failed")
}
