//go:build property

package rules

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"docverify/internal/verification/facts"
	"docverify/internal/verification/policy"
)

// TestOutcomeCardinality verifies one outcome per rule in declaration order.
// Property: len(Evaluate(p, m)) == len(p.Rules) and ids follow p.Rules
func TestOutcomeCardinality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("one outcome per rule, in order", prop.ForAll(
		func(thresholds []float64, present []bool) bool {
			p := &policy.Policy{ID: "prop", Version: "1.0.0", Aggregation: policy.DefaultAggregationParams()}
			var fs []facts.Fact
			for i, th := range thresholds {
				name := fmt.Sprintf("f%d", i)
				sev := policy.SeverityAdvisory
				if i%3 == 0 {
					sev = policy.SeverityBlocking
				}
				p.Rules = append(p.Rules, policy.Rule{
					ID: fmt.Sprintf("r%d", i), Severity: sev, Weight: 1,
					Condition: policy.Condition{Op: policy.OpRange, Fact: name, Min: th},
				})
				if i < len(present) && present[i] {
					fs = append(fs, facts.Number(name, th+float64(i%2)))
				}
			}
			m, err := facts.NewModel(fs...)
			if err != nil {
				return false
			}
			out, err := Evaluate(p, m)
			if err != nil || len(out) != len(p.Rules) {
				return false
			}
			for i, o := range out {
				if o.RuleID != p.Rules[i].ID {
					return false
				}
				if !o.Applicable && (o.Satisfied || o.Contribution != 0) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-1e6, 1e6)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

// TestEvaluationIsPure verifies evaluation is deterministic.
// Property: Evaluate(p, m) == Evaluate(p, m)
func TestEvaluationIsPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	p := &policy.Policy{
		ID: "prop", Version: "1.0.0", Aggregation: policy.DefaultAggregationParams(),
		Derived: []policy.DerivedFact{{Name: "ratio", Op: policy.DerivedRatio, Inputs: []string{"a", "b"}}},
		Rules: []policy.Rule{
			{ID: "ratio_cap", Severity: policy.SeverityBlocking, Condition: policy.Condition{Op: policy.OpRange, Fact: "ratio", Max: 0.8}},
			{ID: "agree", Severity: policy.SeverityAdvisory, Weight: 1, Condition: policy.Condition{Op: policy.OpAgree, Fact: "a", Other: "b", ScaleCorrection: true}},
		},
	}
	prog, err := Compile(p)
	if err != nil {
		t.Fatal(err)
	}

	properties.Property("same inputs, same outcomes", prop.ForAll(
		func(a, b float64) bool {
			m, err := facts.NewModel(facts.Number("a", a), facts.Number("b", b))
			if err != nil {
				return false
			}
			first, err1 := prog.Evaluate(m)
			second, err2 := prog.Evaluate(m)
			if err1 != nil || err2 != nil {
				return false
			}
			return fmt.Sprint(first) == fmt.Sprint(second) && !m.Has("ratio")
		},
		gen.Float64Range(0, 1e7),
		gen.Float64Range(0, 1e7),
	))

	properties.TestingRun(t)
}
