// Package rules evaluates a policy against a fact model. Evaluation is a
// pure function: it performs no aggregation and no I/O.
package rules

import (
	"fmt"
	"regexp"

	"docverify/internal/verification/facts"
	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
)

// Program is a validated policy with its patterns compiled and derived facts
// ordered. It is immutable and safe for concurrent use.
type Program struct {
	policy  *policy.Policy
	derived []policy.DerivedFact
	rules   []compiledRule
}

type compiledRule struct {
	rule     policy.Rule
	root     *node
	required []string
}

// node mirrors a condition with its pattern compiled.
type node struct {
	cond     policy.Condition
	re       *regexp.Regexp
	children []*node
}

// Evaluate compiles p and evaluates it against m, returning one outcome per
// rule in declaration order.
func Evaluate(p *policy.Policy, m *facts.Model) ([]models.RuleOutcome, error) {
	prog, err := Compile(p)
	if err != nil {
		return nil, err
	}
	return prog.Evaluate(m)
}

// Compile validates p and prepares it for evaluation.
func Compile(p *policy.Policy) (*Program, error) {
	if err := policy.Validate(p); err != nil {
		return nil, err
	}
	order, err := policy.DerivedOrder(p)
	if err != nil {
		return nil, err
	}
	prog := &Program{policy: p, derived: order, rules: make([]compiledRule, 0, len(p.Rules))}
	for _, r := range p.Rules {
		root, err := compileNode(p.ID, r.ID, r.Condition)
		if err != nil {
			return nil, err
		}
		prog.rules = append(prog.rules, compiledRule{
			rule:     r,
			root:     root,
			required: r.Condition.RequiredFacts(),
		})
	}
	return prog, nil
}

func compileNode(policyID, ruleID string, c policy.Condition) (*node, error) {
	n := &node{cond: c}
	if c.Op == policy.OpMatches {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, &policy.PolicyError{PolicyID: policyID, RuleID: ruleID, Reason: fmt.Sprintf("invalid pattern %q: %v", c.Pattern, err)}
		}
		n.re = re
	}
	for _, child := range c.Conditions {
		cn, err := compileNode(policyID, ruleID, child)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, cn)
	}
	return n, nil
}

// Policy returns the compiled policy.
func (p *Program) Policy() *policy.Policy {
	return p.policy
}

// Evaluate runs every rule against m. Derived facts are computed into an
// evaluation-scoped overlay; m is not modified.
func (p *Program) Evaluate(m *facts.Model) ([]models.RuleOutcome, error) {
	view, err := p.derive(m)
	if err != nil {
		return nil, err
	}

	outcomes := make([]models.RuleOutcome, 0, len(p.rules))
	for _, cr := range p.rules {
		out, err := p.evaluateRule(cr, view)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (p *Program) evaluateRule(cr compiledRule, view *facts.Model) (models.RuleOutcome, error) {
	out := models.RuleOutcome{
		RuleID:   cr.rule.ID,
		Severity: cr.rule.Severity,
		Source:   models.SourceRule,
		Weight:   cr.rule.Weight,
		Message:  RenderMessage(cr.rule.Message, view),
	}

	var missing []string
	for _, name := range cr.required {
		if !view.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		out.MissingFacts = missing
		return out, nil
	}

	ok, err := eval(cr.rule.ID, cr.root, view)
	if err != nil {
		return models.RuleOutcome{}, err
	}
	out.Applicable = true
	out.Satisfied = ok
	out.Contribution = contribution(cr.rule, ok)
	return out, nil
}

// contribution is the signed evidence an applicable rule adds to the rule
// score. Blocking rules act as gates and contribute nothing.
func contribution(r policy.Rule, satisfied bool) float64 {
	if r.Severity == policy.SeverityBlocking {
		return 0
	}
	if satisfied {
		return r.Weight
	}
	return -r.Weight
}
