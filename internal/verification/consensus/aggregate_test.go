package consensus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"docverify/internal/verification/facts"
	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
	"docverify/internal/verification/rules"
)

// =============================================================================
// Consensus Aggregator Test Suite
// =============================================================================

type AggregateSuite struct {
	suite.Suite
}

func TestAggregateSuite(t *testing.T) {
	suite.Run(t, new(AggregateSuite))
}

func (s *AggregateSuite) run(p *policy.Policy, m *facts.Model, signals ...models.ClassifierSignal) models.Decision {
	outcomes, err := rules.Evaluate(p, m)
	s.Require().NoError(err)
	d, err := Aggregate(p, outcomes, signals)
	s.Require().NoError(err)
	return d
}

func (s *AggregateSuite) model(fs ...facts.Fact) *facts.Model {
	m, err := facts.NewModel(fs...)
	s.Require().NoError(err)
	return m
}

func basePolicy(rs ...policy.Rule) *policy.Policy {
	return &policy.Policy{ID: "kyc", Version: "1.0.0", Rules: rs, Aggregation: policy.DefaultAggregationParams()}
}

func present(id string, sev policy.Severity, fact string) policy.Rule {
	return policy.Rule{ID: id, Severity: sev, Weight: 1, Condition: policy.Condition{Op: policy.OpPresent, Fact: fact}}
}

// =============================================================================
// Scenario Tests
// =============================================================================

func (s *AggregateSuite) TestBlockingFailureRejectsDespiteStrongClassifier() {
	p := basePolicy(policy.Rule{
		ID: "document_not_expired", Severity: policy.SeverityBlocking,
		Condition: policy.Condition{Op: policy.OpFieldGt, Fact: "expiry", Other: "today"},
	})
	m := s.model(
		facts.Date("expiry", mustDate("2024-01-01")),
		facts.Date("today", mustDate("2026-10-14")),
	)

	d := s.run(p, m, models.ClassifierSignal{Name: "doc_type", Label: "AADHAAR", Confidence: 0.95})

	s.Equal(models.VerdictRejected, d.Verdict)
	s.Require().Len(d.BlockingFailures, 1)
	s.Equal("document_not_expired", d.BlockingFailures[0].RuleID)
	s.True(d.NoRuleEvidence)
}

func (s *AggregateSuite) TestSplitAdvisoryEvidenceGoesToManualReview() {
	p := basePolicy(
		present("has_pan", policy.SeverityAdvisory, "pan"),
		present("has_passport", policy.SeverityAdvisory, "passport"),
	)
	d := s.run(p, s.model(facts.String("pan", "ABCDE1234F")),
		models.ClassifierSignal{Name: "doc_type", Label: "PAN", Confidence: 0.8})

	s.InDelta(0.5, d.RuleScore, 1e-12)
	s.InDelta(0.8, d.ClassifierScore, 1e-12)
	s.InDelta(0.62, d.Confidence, 1e-12)
	s.Equal(models.VerdictManualReview, d.Verdict)
	s.Empty(d.BlockingFailures)
}

func (s *AggregateSuite) TestMissingFactExcludedFromNormalization() {
	p := basePolicy(
		present("has_pan", policy.SeverityAdvisory, "pan"),
		policy.Rule{ID: "income_positive", Severity: policy.SeverityAdvisory, Weight: 1,
			Condition: policy.Condition{Op: policy.OpRange, Fact: "income", Min: 0, MinExclusive: true}},
	)
	d := s.run(p, s.model(facts.String("pan", "ABCDE1234F")))

	s.False(d.RuleOutcomes[1].Applicable)
	s.InDelta(1.0, d.RuleScore, 1e-12, "only the applicable rule is normalized")
	s.True(d.NoClassifierEvidence)
	s.InDelta(0.6*1.0+0.4*0.5, d.Confidence, 1e-12)
}

func (s *AggregateSuite) TestInconsistentThresholdsFailAtLoad() {
	doc := []byte(`
id: bad
version: 1.0.0
rules: []
aggregation:
  pass_threshold: 0.5
  reject_threshold: 0.6
`)
	_, err := policy.Parse(doc, policy.FormatYAML)
	var aggErr *policy.AggregationError
	s.Require().True(errors.As(err, &aggErr))
	s.Equal("bad", aggErr.PolicyID)
}

// =============================================================================
// Banding Tests
// =============================================================================

func (s *AggregateSuite) TestBanding() {
	params := policy.DefaultAggregationParams()

	s.Run("confidence on the pass threshold is manual review", func() {
		s.Equal(models.VerdictManualReview, Band(params, 0.7))
		s.Equal(models.VerdictManualReview, Band(params, 0.6+0.1))
	})

	s.Run("above pass is approved", func() {
		s.Equal(models.VerdictApproved, Band(params, 0.7001))
	})

	s.Run("within epsilon above pass is still manual review", func() {
		s.Equal(models.VerdictManualReview, Band(params, 0.7+5e-10))
		s.Equal(models.VerdictApproved, Band(params, 0.7+2e-9))
	})

	s.Run("on the reject threshold is rejected", func() {
		s.Equal(models.VerdictRejected, Band(params, 0.4))
		s.Equal(models.VerdictManualReview, Band(params, 0.41))
	})

	s.Run("within epsilon above reject is still rejected", func() {
		s.Equal(models.VerdictRejected, Band(params, 0.4+5e-10))
		s.Equal(models.VerdictManualReview, Band(params, 0.4+2e-9))
	})

	s.Run("tie lands on pass threshold end to end", func() {
		p := basePolicy(present("has_pan", policy.SeverityAdvisory, "pan"))
		d := s.run(p, s.model(facts.String("pan", "X")),
			models.ClassifierSignal{Name: "doc_type", Label: "PAN", Confidence: 0.25})
		s.InDelta(0.7, d.Confidence, 1e-12)
		s.Equal(models.VerdictManualReview, d.Verdict)
	})
}

func (s *AggregateSuite) TestBlockingBehavior() {
	p := basePolicy(
		present("gate", policy.SeverityBlocking, "aadhaar_number"),
		present("has_pan", policy.SeverityAdvisory, "pan"),
	)
	p.Aggregation.BlockingBehavior = policy.BlockingManualReview

	s.Run("failed gate with manual review behavior", func() {
		d := s.run(p, s.model(facts.String("pan", "X")),
			models.ClassifierSignal{Name: "doc_type", Confidence: 1})
		s.Equal(models.VerdictManualReview, d.Verdict)
		s.Len(d.BlockingFailures, 1)
	})

	s.Run("low confidence stays rejected", func() {
		d := s.run(p, s.model(), models.ClassifierSignal{Name: "doc_type", Confidence: 0})
		s.Equal(models.VerdictRejected, d.Verdict)
	})
}

func (s *AggregateSuite) TestUnevaluatedBlockingRule() {
	p := basePolicy(
		policy.Rule{ID: "ltv_cap", Severity: policy.SeverityBlocking,
			Condition: policy.Condition{Op: policy.OpRange, Fact: "ltv", Max: 0.8}},
		present("has_pan", policy.SeverityAdvisory, "pan"),
	)
	strong := models.ClassifierSignal{Name: "doc_type", Label: "LOAN_DOC", Confidence: 0.9}

	s.Run("downgrades approval by default", func() {
		d := s.run(p, s.model(facts.String("pan", "X")), strong)
		s.Equal(models.VerdictManualReview, d.Verdict)
		s.Empty(d.BlockingFailures)
		s.Contains(d.Reasons[len(d.Reasons)-1], "manual review")
	})

	s.Run("ignored when configured", func() {
		p.Aggregation.InapplicableBlocking = policy.InapplicableIgnore
		d := s.run(p, s.model(facts.String("pan", "X")), strong)
		s.Equal(models.VerdictApproved, d.Verdict)
	})
}

// =============================================================================
// Expectation Tests
// =============================================================================

func (s *AggregateSuite) TestExpectations() {
	p := basePolicy(present("has_pan", policy.SeverityAdvisory, "pan"))
	p.Expectations = []policy.Expectation{
		{ID: "doc_is_loan", Signal: "doc_type", Labels: []string{"LOAN_DOC"}, Weight: 1},
	}

	s.Run("mismatched label is an unsatisfied advisory outcome", func() {
		d := s.run(p, s.model(facts.String("pan", "X")),
			models.ClassifierSignal{Name: "doc_type", Label: "PAN", Confidence: 0.9})
		s.Len(d.RuleOutcomes, 1)
		s.Require().Len(d.ExpectationOutcomes, 1)
		e := d.ExpectationOutcomes[0]
		s.Equal(models.SourceExpectation, e.Source)
		s.True(e.Applicable)
		s.False(e.Satisfied)
		s.Equal(-1.0, e.Contribution)
		s.InDelta(0.5, d.RuleScore, 1e-12)
	})

	s.Run("absent signal is not applicable", func() {
		d := s.run(p, s.model(facts.String("pan", "X")))
		s.False(d.ExpectationOutcomes[0].Applicable)
		s.InDelta(1.0, d.RuleScore, 1e-12)
	})

	s.Run("low confidence signal is not applicable", func() {
		p.Expectations[0].MinConfidence = 0.95
		d := s.run(p, s.model(facts.String("pan", "X")),
			models.ClassifierSignal{Name: "doc_type", Label: "PAN", Confidence: 0.9})
		s.False(d.ExpectationOutcomes[0].Applicable)
	})
}

// =============================================================================
// Input Validation Tests
// =============================================================================

func (s *AggregateSuite) TestRejectsBadInput() {
	p := basePolicy(present("has_pan", policy.SeverityAdvisory, "pan"))
	outcomes, err := rules.Evaluate(p, s.model())
	s.Require().NoError(err)

	s.Run("duplicate signal", func() {
		_, err := Aggregate(p, outcomes, []models.ClassifierSignal{{Name: "a", Confidence: 0.1}, {Name: "a", Confidence: 0.2}})
		var se *models.SignalError
		s.True(errors.As(err, &se))
	})

	s.Run("outcome count mismatch", func() {
		_, err := Aggregate(p, nil, nil)
		var pe *policy.PolicyError
		s.True(errors.As(err, &pe))
	})

	s.Run("bad params in aggregate carry the policy id", func() {
		bad := basePolicy(present("has_pan", policy.SeverityAdvisory, "pan"))
		bad.Aggregation.NeutralScore = 2
		_, err := Aggregate(bad, outcomes, nil)
		var aggErr *policy.AggregationError
		s.Require().True(errors.As(err, &aggErr))
		s.Equal(bad.ID, aggErr.PolicyID)
	})

	s.Run("bad params in fold", func() {
		params := policy.DefaultAggregationParams()
		params.NeutralScore = 2
		_, err := Fold(params, outcomes, nil, nil)
		var aggErr *policy.AggregationError
		s.True(errors.As(err, &aggErr))
	})
}

func (s *AggregateSuite) TestWeightedClassifierScore() {
	p := basePolicy()
	p.Aggregation.ClassifierWeights = map[string]float64{"doc_type": 3, "tamper": 1, "ignored": 0}
	d := s.run(p, s.model(),
		models.ClassifierSignal{Name: "doc_type", Confidence: 1},
		models.ClassifierSignal{Name: "tamper", Confidence: 0.2},
		models.ClassifierSignal{Name: "ignored", Confidence: 0},
	)
	s.InDelta((3*1+0.2)/4, d.ClassifierScore, 1e-12)
	s.Len(d.ClassifierSignals, 3)
}

func (s *AggregateSuite) TestDigestIsReproducible() {
	p := basePolicy(present("has_pan", policy.SeverityAdvisory, "pan"))
	m := s.model(facts.String("pan", "X"))
	sig := models.ClassifierSignal{Name: "doc_type", Label: "PAN", Confidence: 0.8}

	first := s.run(p, m, sig)
	second := s.run(p, m, sig)
	s.Equal(first, second)
	s.NotEmpty(first.Digest)
	s.True(first.VerifyDigest())
	s.Equal("kyc", first.PolicyID)
	s.Equal("1.0.0", first.PolicyVersion)
}

// =============================================================================
// Compiled Policy Tests
// =============================================================================

func (s *AggregateSuite) TestAggregateProgramMatchesAggregate() {
	p := basePolicy(present("has_pan", policy.SeverityAdvisory, "pan"))
	m := s.model(facts.String("pan", "X"))
	sig := models.ClassifierSignal{Name: "doc_type", Label: "PAN", Confidence: 0.8}

	prog, err := rules.Compile(p)
	s.Require().NoError(err)
	outcomes, err := prog.Evaluate(m)
	s.Require().NoError(err)

	compiled, err := AggregateProgram(prog, outcomes, []models.ClassifierSignal{sig})
	s.Require().NoError(err)
	s.Equal(s.run(p, m, sig), compiled)
	s.True(compiled.VerifyDigest())
}
