package policy

import "fmt"

// PolicyError reports a malformed or inconsistent policy. It is a
// configuration defect: fatal, surfaced to the caller, never retried.
type PolicyError struct {
	PolicyID string
	RuleID   string
	Reason   string
}

func (e *PolicyError) Error() string {
	switch {
	case e.PolicyID != "" && e.RuleID != "":
		return fmt.Sprintf("policy %s: rule %s: %s", e.PolicyID, e.RuleID, e.Reason)
	case e.PolicyID != "":
		return fmt.Sprintf("policy %s: %s", e.PolicyID, e.Reason)
	default:
		return "policy: " + e.Reason
	}
}

// ConditionTypeError reports a condition comparing incompatible types, such
// as a pattern match against a numeric fact. It is an authoring bug in the
// named rule and is never silently coerced.
type ConditionTypeError struct {
	RuleID string
	Fact   string
	Op     Op
	Reason string
}

func (e *ConditionTypeError) Error() string {
	return fmt.Sprintf("rule %s: %s on fact %q: %s", e.RuleID, e.Op, e.Fact, e.Reason)
}

// AggregationError reports inconsistent aggregation parameters. Detected when
// a policy is loaded, before any session runs.
type AggregationError struct {
	PolicyID string
	Field    string
	Reason   string
}

func (e *AggregationError) Error() string {
	if e.PolicyID == "" {
		return fmt.Sprintf("aggregation %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("policy %s: aggregation %s: %s", e.PolicyID, e.Field, e.Reason)
}
