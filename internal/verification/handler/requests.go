package handler

import (
	"strings"

	"docverify/internal/verification/facts"
	"docverify/internal/verification/models"
	"docverify/internal/verification/ports"
	dErrors "docverify/pkg/domain-errors"
)

const (
	maxFacts   = 512
	maxSignals = 64
)

// SessionRequest is the body of POST /verification/sessions. Either facts and
// signals are supplied directly, or a document reference is given and the
// configured collaborators supply them.
type SessionRequest struct {
	PolicyID        string                    `json:"policy_id"`
	Version         string                    `json:"version,omitempty"`
	Facts           []facts.Raw               `json:"facts,omitempty"`
	Signals         []models.ClassifierSignal `json:"signals,omitempty"`
	Document        *ports.DocumentRef        `json:"document,omitempty"`
	ClassifierFacts bool                      `json:"classifier_facts,omitempty"`
}

// Validate normalizes and checks the request shape. Fact and signal
// semantics are checked by the session.
func (r *SessionRequest) Validate() error {
	r.PolicyID = strings.TrimSpace(r.PolicyID)
	r.Version = strings.TrimSpace(r.Version)
	if r.PolicyID == "" {
		return dErrors.New(dErrors.CodeValidation, "policy_id is required")
	}
	if len(r.Facts) > maxFacts {
		return dErrors.New(dErrors.CodeValidation, "too many facts")
	}
	if len(r.Signals) > maxSignals {
		return dErrors.New(dErrors.CodeValidation, "too many signals")
	}
	if r.Document != nil {
		if strings.TrimSpace(r.Document.ID) == "" {
			return dErrors.New(dErrors.CodeValidation, "document.id is required")
		}
		if len(r.Signals) > 0 {
			return dErrors.New(dErrors.CodeValidation, "signals are supplied by the classifier when a document is given")
		}
	} else if r.ClassifierFacts {
		return dErrors.New(dErrors.CodeValidation, "classifier_facts requires a document")
	}
	return nil
}
