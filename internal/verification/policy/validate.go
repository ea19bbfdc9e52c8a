package policy

import (
	"fmt"
	"math"
	"regexp"
)

// Validate checks p for structural consistency: identifiers, version,
// operators, regular expressions, derived fact dependencies and aggregation
// parameters. The first defect found in declaration order is returned.
func Validate(p *Policy) error {
	if p == nil {
		return &PolicyError{Reason: "policy is nil"}
	}
	if p.ID == "" {
		return &PolicyError{Reason: "policy id is required"}
	}
	if _, err := p.SemVer(); err != nil {
		return err
	}

	for _, d := range p.Derived {
		if err := d.validate(p.ID); err != nil {
			return err
		}
	}
	if _, err := DerivedOrder(p); err != nil {
		return err
	}

	ids := make(map[string]bool, len(p.Rules)+len(p.Expectations))
	for _, r := range p.Rules {
		if r.ID == "" {
			return &PolicyError{PolicyID: p.ID, Reason: "rule without an id"}
		}
		if ids[r.ID] {
			return &PolicyError{PolicyID: p.ID, RuleID: r.ID, Reason: "duplicate rule id"}
		}
		ids[r.ID] = true
		if !r.Severity.Valid() {
			return &PolicyError{PolicyID: p.ID, RuleID: r.ID, Reason: fmt.Sprintf("unknown severity %q", r.Severity)}
		}
		if math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) {
			return &PolicyError{PolicyID: p.ID, RuleID: r.ID, Reason: "weight must be finite"}
		}
		if err := validateCondition(p.ID, r.ID, r.Condition); err != nil {
			return err
		}
	}

	for _, e := range p.Expectations {
		if e.ID == "" {
			return &PolicyError{PolicyID: p.ID, Reason: "expectation without an id"}
		}
		if ids[e.ID] {
			return &PolicyError{PolicyID: p.ID, RuleID: e.ID, Reason: "duplicate rule id"}
		}
		ids[e.ID] = true
		if e.Signal == "" {
			return &PolicyError{PolicyID: p.ID, RuleID: e.ID, Reason: "expectation requires a signal"}
		}
		if len(e.Labels) == 0 {
			return &PolicyError{PolicyID: p.ID, RuleID: e.ID, Reason: "expectation requires at least one label"}
		}
		if !(e.Weight > 0) || math.IsInf(e.Weight, 0) {
			return &PolicyError{PolicyID: p.ID, RuleID: e.ID, Reason: "expectation weight must be positive"}
		}
		if e.MinConfidence < 0 || e.MinConfidence > 1 {
			return &PolicyError{PolicyID: p.ID, RuleID: e.ID, Reason: "min_confidence must be within [0,1]"}
		}
	}

	if err := p.Aggregation.Validate(); err != nil {
		if aggErr, ok := err.(*AggregationError); ok {
			aggErr.PolicyID = p.ID
		}
		return err
	}
	return nil
}

func validateCondition(policyID, ruleID string, c Condition) error {
	fail := func(format string, args ...any) error {
		return &PolicyError{PolicyID: policyID, RuleID: ruleID, Reason: fmt.Sprintf(format, args...)}
	}
	needFact := func() error {
		if c.Fact == "" {
			return fail("%s requires a fact", c.Op)
		}
		return nil
	}

	switch c.Op {
	case OpEq, OpNeq:
		if err := needFact(); err != nil {
			return err
		}
		if !validLiteral(c.Value) {
			return fail("%s requires a scalar value", c.Op)
		}
	case OpRange:
		if err := needFact(); err != nil {
			return err
		}
		if c.Min == nil && c.Max == nil {
			return fail("range requires min or max")
		}
		for _, bound := range []any{c.Min, c.Max} {
			if bound == nil {
				continue
			}
			_, isNum := LiteralNumber(bound)
			_, isStr := bound.(string)
			if !isNum && !isStr {
				return fail("range bounds must be numbers or dates")
			}
		}
		lo, okLo := LiteralNumber(c.Min)
		hi, okHi := LiteralNumber(c.Max)
		if okLo && okHi && lo > hi {
			return fail("range min %v exceeds max %v", lo, hi)
		}
	case OpIn:
		if err := needFact(); err != nil {
			return err
		}
		if len(c.Values) == 0 {
			return fail("in requires at least one value")
		}
		for _, v := range c.Values {
			if !validLiteral(v) {
				return fail("in values must be scalars")
			}
		}
	case OpMatches:
		if err := needFact(); err != nil {
			return err
		}
		if c.Pattern == "" {
			return fail("matches requires a pattern")
		}
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fail("invalid pattern %q: %v", c.Pattern, err)
		}
	case OpPresent:
		if err := needFact(); err != nil {
			return err
		}
	case OpFieldEq, OpFieldNeq, OpFieldLt, OpFieldLte, OpFieldGt, OpFieldGte, OpAgree, OpNameMatch:
		if c.Fact == "" || c.Other == "" {
			return fail("%s requires fact and other", c.Op)
		}
		if c.Fact == c.Other {
			return fail("%s compares %s with itself", c.Op, c.Fact)
		}
		if c.Op == OpAgree && (c.Tolerance < 0 || c.Tolerance >= 1 || math.IsNaN(c.Tolerance)) {
			return fail("agree tolerance must be within [0,1)")
		}
	case OpAll, OpAny:
		if len(c.Conditions) == 0 {
			return fail("%s requires at least one condition", c.Op)
		}
		for _, child := range c.Conditions {
			if err := validateCondition(policyID, ruleID, child); err != nil {
				return err
			}
		}
	case OpNot:
		if len(c.Conditions) != 1 {
			return fail("not requires exactly one condition, got %d", len(c.Conditions))
		}
		return validateCondition(policyID, ruleID, c.Conditions[0])
	case "":
		return fail("condition without an operator")
	default:
		return fail("undefined operator %q", c.Op)
	}
	return nil
}
