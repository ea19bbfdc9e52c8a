package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Decision is the immutable artifact of one verification session. It
// carries no timestamps or generated identifiers, so identical inputs yield
// identical Decisions and digests.
type Decision struct {
	Verdict         Verdict `json:"verdict"`
	Confidence      float64 `json:"confidence"`
	RuleScore       float64 `json:"rule_score"`
	ClassifierScore float64 `json:"classifier_score"`

	RuleOutcomes        []RuleOutcome      `json:"rule_outcomes"`
	ExpectationOutcomes []RuleOutcome      `json:"expectation_outcomes"`
	BlockingFailures    []RuleOutcome      `json:"blocking_failures"`
	ClassifierSignals   []ClassifierSignal `json:"classifier_signals"`

	PolicyID      string `json:"policy_id"`
	PolicyVersion string `json:"policy_version"`

	NoRuleEvidence       bool `json:"no_rule_evidence"`
	NoClassifierEvidence bool `json:"no_classifier_evidence"`

	Reasons []string `json:"reasons"`

	// Digest is the hex SHA-256 of the canonical JSON of every other field.
	Digest string `json:"digest"`
}

// ComputeDigest returns the digest of d with its Digest field cleared. The
// encoding is RFC 8785 canonical JSON, so the digest is independent of field
// order and number formatting.
func (d Decision) ComputeDigest() (string, error) {
	d.Digest = ""
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal decision: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize decision: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Seal sets the digest.
func (d *Decision) Seal() error {
	digest, err := d.ComputeDigest()
	if err != nil {
		return err
	}
	d.Digest = digest
	return nil
}

// VerifyDigest reports whether the stored digest matches the content.
func (d Decision) VerifyDigest() bool {
	digest, err := d.ComputeDigest()
	return err == nil && digest == d.Digest
}
