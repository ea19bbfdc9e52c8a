// Package models holds the value objects produced by a verification
// session: rule outcomes, classifier signals and the Decision artifact.
package models

import (
	"fmt"
	"math"

	"docverify/internal/verification/policy"
)

// OutcomeSource distinguishes policy rules from outcomes synthesized from
// classifier expectations.
type OutcomeSource string

const (
	SourceRule        OutcomeSource = "rule"
	SourceExpectation OutcomeSource = "expectation"
)

// RuleOutcome is the result of evaluating one rule against a fact model.
// Applicable is false when a required fact was absent; such an outcome is
// never satisfied and contributes nothing.
type RuleOutcome struct {
	RuleID       string          `json:"rule_id"`
	Severity     policy.Severity `json:"severity"`
	Source       OutcomeSource   `json:"source"`
	Applicable   bool            `json:"applicable"`
	Satisfied    bool            `json:"satisfied"`
	Weight       float64         `json:"weight"`
	Contribution float64         `json:"contribution"`
	Message      string          `json:"message,omitempty"`
	MissingFacts []string        `json:"missing_facts,omitempty"`
}

// Failed reports whether the outcome was evaluated and not satisfied.
func (o RuleOutcome) Failed() bool {
	return o.Applicable && !o.Satisfied
}

// IsBlocking reports whether the outcome comes from a blocking rule.
func (o RuleOutcome) IsBlocking() bool {
	return o.Severity == policy.SeverityBlocking
}

// ClassifierSignal is a named classifier prediction. Signals are evidence,
// never a hard rule by themselves.
type ClassifierSignal struct {
	Name       string  `json:"name"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// SignalError reports an unusable classifier signal.
type SignalError struct {
	Name   string
	Reason string
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("classifier signal %q: %s", e.Name, e.Reason)
}

// ValidateSignals checks every signal has a unique name and a confidence
// within [0,1].
func ValidateSignals(signals []ClassifierSignal) error {
	seen := make(map[string]bool, len(signals))
	for _, s := range signals {
		if s.Name == "" {
			return &SignalError{Reason: "signal name is required"}
		}
		if seen[s.Name] {
			return &SignalError{Name: s.Name, Reason: "duplicate signal name"}
		}
		seen[s.Name] = true
		if math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
			return &SignalError{Name: s.Name, Reason: fmt.Sprintf("confidence %v outside [0,1]", s.Confidence)}
		}
	}
	return nil
}

// Verdict is the three-way outcome of a session.
type Verdict string

const (
	VerdictApproved     Verdict = "approved"
	VerdictRejected     Verdict = "rejected"
	VerdictManualReview Verdict = "manual_review"
)

// Restrictiveness orders verdicts from least to most restrictive.
func (v Verdict) Restrictiveness() int {
	switch v {
	case VerdictApproved:
		return 0
	case VerdictManualReview:
		return 1
	default:
		return 2
	}
}
