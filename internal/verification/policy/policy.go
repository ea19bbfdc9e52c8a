// Package policy holds the declarative policy data model: rules, derived
// facts, classifier expectations and aggregation parameters. A Policy is
// read-only once loaded; evaluation order is declaration order.
package policy

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Severity classifies how a rule participates in the verdict.
type Severity string

const (
	// SeverityBlocking rules are hard gates.
	SeverityBlocking Severity = "blocking"
	// SeverityAdvisory rules contribute weighted evidence to the rule score.
	SeverityAdvisory Severity = "advisory"
)

// Valid reports whether the severity is known.
func (s Severity) Valid() bool {
	return s == SeverityBlocking || s == SeverityAdvisory
}

// Policy is a versioned, ordered set of rules plus aggregation parameters.
type Policy struct {
	ID           string            `yaml:"id" json:"id"`
	Version      string            `yaml:"version" json:"version"`
	Name         string            `yaml:"name,omitempty" json:"name,omitempty"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	Derived      []DerivedFact     `yaml:"derived,omitempty" json:"derived,omitempty"`
	Rules        []Rule            `yaml:"rules" json:"rules"`
	Expectations []Expectation     `yaml:"expectations,omitempty" json:"expectations,omitempty"`
	Aggregation  AggregationParams `yaml:"aggregation" json:"aggregation"`
}

// Rule is a single predicate over the fact model with a weight and severity.
type Rule struct {
	ID          string    `yaml:"id" json:"id"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Condition   Condition `yaml:"condition" json:"condition"`
	Weight      float64   `yaml:"weight" json:"weight"`
	Severity    Severity  `yaml:"severity" json:"severity"`
	// Message is a justification template. {fact} placeholders are replaced
	// with the fact's display value.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Expectation requires a classifier signal to predict one of Labels. It is
// folded into a synthetic advisory outcome at aggregation time.
type Expectation struct {
	ID     string   `yaml:"id" json:"id"`
	Signal string   `yaml:"signal" json:"signal"`
	Labels []string `yaml:"labels" json:"labels"`
	Weight float64  `yaml:"weight" json:"weight"`
	// MinConfidence treats signals below this confidence as absent.
	MinConfidence float64 `yaml:"min_confidence,omitempty" json:"min_confidence,omitempty"`
	Message       string  `yaml:"message,omitempty" json:"message,omitempty"`
}

// Expects reports whether label is one of the expected labels.
func (e Expectation) Expects(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Ref identifies one immutable policy version.
type Ref struct {
	ID      string
	Version string
}

func (r Ref) String() string {
	return r.ID + "@" + r.Version
}

// Ref returns the policy's reference.
func (p *Policy) Ref() Ref {
	return Ref{ID: p.ID, Version: p.Version}
}

// SemVer parses the policy version.
func (p *Policy) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(p.Version)
	if err != nil {
		return nil, &PolicyError{PolicyID: p.ID, Reason: fmt.Sprintf("invalid version %q: %v", p.Version, err)}
	}
	return v, nil
}

// CanonicalVersion normalizes a semantic version string, so "1.2" and
// "v1.2.0" both become "1.2.0".
func CanonicalVersion(v string) (string, error) {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", v, err)
	}
	return parsed.String(), nil
}

// Latest returns the greatest semantic version in versions. Unparseable
// entries are skipped; ok is false when none parse.
func Latest(versions []string) (latest string, ok bool) {
	var best *semver.Version
	for _, raw := range versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			latest = raw
		}
	}
	return latest, best != nil
}

// Rule returns the rule with the given id.
func (p *Policy) Rule(id string) (Rule, bool) {
	for _, r := range p.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}
