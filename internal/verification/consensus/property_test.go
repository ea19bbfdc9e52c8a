//go:build property

package consensus

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
)

func outcomesFrom(blocking []bool, advisory []bool) []models.RuleOutcome {
	var out []models.RuleOutcome
	for i, sat := range blocking {
		out = append(out, models.RuleOutcome{
			RuleID: fmt.Sprintf("b%d", i), Severity: policy.SeverityBlocking, Source: models.SourceRule,
			Applicable: true, Satisfied: sat, Weight: 1,
		})
	}
	for i, sat := range advisory {
		c := 1.0
		if !sat {
			c = -1
		}
		out = append(out, models.RuleOutcome{
			RuleID: fmt.Sprintf("a%d", i), Severity: policy.SeverityAdvisory, Source: models.SourceRule,
			Applicable: true, Satisfied: sat, Weight: 1, Contribution: c,
		})
	}
	return out
}

// TestBlockingGateIsMonotonic verifies satisfying a blocking rule never makes
// the verdict more restrictive.
func TestBlockingGateIsMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	params := policy.DefaultAggregationParams()

	properties.Property("fixing a blocking failure never tightens the verdict", prop.ForAll(
		func(blocking, advisory []bool, confidence float64, flip int) bool {
			if len(blocking) == 0 {
				return true
			}
			signals := []models.ClassifierSignal{{Name: "doc_type", Label: "X", Confidence: confidence}}
			before, err := Fold(params, outcomesFrom(blocking, advisory), nil, signals)
			if err != nil {
				return false
			}
			fixed := append([]bool(nil), blocking...)
			fixed[flip%len(fixed)] = true
			after, err := Fold(params, outcomesFrom(fixed, advisory), nil, signals)
			if err != nil {
				return false
			}
			return after.Verdict.Restrictiveness() <= before.Verdict.Restrictiveness()
		},
		gen.SliceOf(gen.Bool()),
		gen.SliceOf(gen.Bool()),
		gen.Float64Range(0, 1),
		gen.IntRange(0, 1000),
	))

	properties.Property("a failed blocking rule never approves", prop.ForAll(
		func(advisory []bool, confidence float64) bool {
			signals := []models.ClassifierSignal{{Name: "doc_type", Confidence: confidence}}
			d, err := Fold(params, outcomesFrom([]bool{false}, advisory), nil, signals)
			return err == nil && d.Verdict != models.VerdictApproved
		},
		gen.SliceOf(gen.Bool()),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// TestDecisionDeterminism verifies bit-identical decisions for identical input.
// Property: Aggregate(p, o, s).Digest == Aggregate(p, o, s).Digest
func TestDecisionDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("digest is stable", prop.ForAll(
		func(advisory []bool, confidence float64) bool {
			outcomes := outcomesFrom(nil, advisory)
			p := &policy.Policy{ID: "prop", Version: "1.0.0", Aggregation: policy.DefaultAggregationParams()}
			for _, o := range outcomes {
				p.Rules = append(p.Rules, policy.Rule{ID: o.RuleID, Severity: o.Severity, Weight: o.Weight})
			}
			signals := []models.ClassifierSignal{{Name: "doc_type", Label: "X", Confidence: confidence}}
			a, errA := Aggregate(p, outcomes, signals)
			b, errB := Aggregate(p, outcomes, signals)
			return errA == nil && errB == nil && a.Digest == b.Digest && a.Confidence >= 0 && a.Confidence <= 1
		},
		gen.SliceOf(gen.Bool()),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}
