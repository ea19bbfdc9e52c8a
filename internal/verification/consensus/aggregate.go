// Package consensus folds rule outcomes and classifier signals into a
// single Decision. Folding is pure: the same inputs always produce the same
// Decision, digest included.
package consensus

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
	"docverify/internal/verification/rules"
)

// boundaryEpsilon absorbs floating point noise when confidence lands on a
// threshold. Ties resolve to the more restrictive band.
const boundaryEpsilon = 1e-9

// Aggregate folds outcomes and signals under p's aggregation parameters and
// expectations. outcomes must be the rule engine's result for p.
func Aggregate(p *policy.Policy, outcomes []models.RuleOutcome, signals []models.ClassifierSignal) (models.Decision, error) {
	if p == nil {
		return models.Decision{}, &policy.PolicyError{Reason: "policy is nil"}
	}
	if err := p.Aggregation.Validate(); err != nil {
		return models.Decision{}, withPolicyID(err, p.ID)
	}
	return aggregate(p, outcomes, signals)
}

// AggregateProgram is Aggregate for a compiled policy. Compile has already
// validated the aggregation parameters, so they are not checked again.
func AggregateProgram(prog *rules.Program, outcomes []models.RuleOutcome, signals []models.ClassifierSignal) (models.Decision, error) {
	return aggregate(prog.Policy(), outcomes, signals)
}

func aggregate(p *policy.Policy, outcomes []models.RuleOutcome, signals []models.ClassifierSignal) (models.Decision, error) {
	if len(outcomes) != len(p.Rules) {
		return models.Decision{}, &policy.PolicyError{
			PolicyID: p.ID,
			Reason:   fmt.Sprintf("got %d rule outcomes for %d rules", len(outcomes), len(p.Rules)),
		}
	}
	if err := models.ValidateSignals(signals); err != nil {
		return models.Decision{}, err
	}
	synthetic := Expectations(p.Expectations, signals)

	d := fold(p.Aggregation, outcomes, synthetic, signals)
	d.PolicyID = p.ID
	d.PolicyVersion = p.Version
	if err := d.Seal(); err != nil {
		return models.Decision{}, err
	}
	return d, nil
}

// Expectations converts classifier expectations into synthetic advisory
// outcomes. An absent signal, or one below the expectation's minimum
// confidence, is not applicable; a label outside the expected set is
// unsatisfied.
func Expectations(exps []policy.Expectation, signals []models.ClassifierSignal) []models.RuleOutcome {
	byName := make(map[string]models.ClassifierSignal, len(signals))
	for _, s := range signals {
		byName[s.Name] = s
	}

	out := make([]models.RuleOutcome, 0, len(exps))
	for _, e := range exps {
		o := models.RuleOutcome{
			RuleID:   e.ID,
			Severity: policy.SeverityAdvisory,
			Source:   models.SourceExpectation,
			Weight:   e.Weight,
			Message:  e.Message,
		}
		s, ok := byName[e.Signal]
		if !ok || s.Confidence < e.MinConfidence {
			o.MissingFacts = []string{"classifier:" + e.Signal}
			out = append(out, o)
			continue
		}
		o.Applicable = true
		o.Satisfied = e.Expects(s.Label)
		if o.Satisfied {
			o.Contribution = e.Weight
		} else {
			o.Contribution = -e.Weight
			if o.Message == "" {
				o.Message = fmt.Sprintf("%s predicted %q, expected one of %s", e.Signal, s.Label, strings.Join(e.Labels, ", "))
			}
		}
		out = append(out, o)
	}
	return out
}

// Fold combines outcomes, synthetic expectation outcomes and signals under
// params. The returned Decision has no policy reference or digest; Aggregate
// sets both.
func Fold(params policy.AggregationParams, outcomes, synthetic []models.RuleOutcome, signals []models.ClassifierSignal) (models.Decision, error) {
	if err := params.Validate(); err != nil {
		return models.Decision{}, err
	}
	return fold(params, outcomes, synthetic, signals), nil
}

func fold(params policy.AggregationParams, outcomes, synthetic []models.RuleOutcome, signals []models.ClassifierSignal) models.Decision {
	d := models.Decision{
		RuleOutcomes:        append(make([]models.RuleOutcome, 0, len(outcomes)), outcomes...),
		ExpectationOutcomes: append(make([]models.RuleOutcome, 0, len(synthetic)), synthetic...),
		BlockingFailures:    make([]models.RuleOutcome, 0),
		ClassifierSignals:   append(make([]models.ClassifierSignal, 0, len(signals)), signals...),
		Reasons:             make([]string, 0),
	}

	var unevaluatedGates []models.RuleOutcome
	for _, o := range outcomes {
		if !o.IsBlocking() {
			continue
		}
		switch {
		case o.Failed():
			d.BlockingFailures = append(d.BlockingFailures, o)
			d.Reasons = append(d.Reasons, describeFailure("blocking rule", o))
		case !o.Applicable:
			unevaluatedGates = append(unevaluatedGates, o)
		}
	}

	d.RuleScore, d.NoRuleEvidence = ruleScore(params, outcomes, synthetic)
	if d.NoRuleEvidence {
		d.Reasons = append(d.Reasons, fmt.Sprintf("no applicable advisory evidence; rule score set to neutral %s", format(params.NeutralScore)))
	}
	for _, o := range synthetic {
		if o.Failed() {
			d.Reasons = append(d.Reasons, describeFailure("expectation", o))
		}
	}

	d.ClassifierScore, d.NoClassifierEvidence = classifierScore(params, signals)
	if d.NoClassifierEvidence {
		d.Reasons = append(d.Reasons, fmt.Sprintf("no classifier evidence; classifier score set to neutral %s", format(params.NeutralScore)))
	}

	rw, cw := params.CombinationWeights()
	d.Confidence = clamp(rw*d.RuleScore + cw*d.ClassifierScore)

	band := Band(params, d.Confidence)
	d.Reasons = append(d.Reasons, fmt.Sprintf("confidence %s (rule %s, classifier %s) is in the %s band",
		format(d.Confidence), format(d.RuleScore), format(d.ClassifierScore), band))
	d.Verdict = band

	if len(d.BlockingFailures) > 0 {
		gate := models.VerdictRejected
		if params.Blocking() == policy.BlockingManualReview {
			gate = models.VerdictManualReview
		}
		d.Verdict = mostRestrictive(d.Verdict, gate)
		d.Reasons = append(d.Reasons, fmt.Sprintf("%d blocking rule(s) failed; verdict %s", len(d.BlockingFailures), d.Verdict))
	}

	if len(unevaluatedGates) > 0 && params.Inapplicable() == policy.InapplicableManualReview {
		for _, o := range unevaluatedGates {
			d.Reasons = append(d.Reasons, fmt.Sprintf("blocking rule %s not evaluated: missing %s", o.RuleID, strings.Join(o.MissingFacts, ", ")))
		}
		if d.Verdict == models.VerdictApproved {
			d.Verdict = models.VerdictManualReview
			d.Reasons = append(d.Reasons, "unevaluated blocking rules route the approval to manual review")
		}
	}
	return d
}

func withPolicyID(err error, id string) error {
	var aggErr *policy.AggregationError
	if errors.As(err, &aggErr) {
		aggErr.PolicyID = id
	}
	return err
}

// Band maps a confidence to a verdict ignoring blocking rules. Confidence on
// the pass threshold is manual review; on the reject threshold it is
// rejected. Each threshold is widened upward by boundaryEpsilon, so a
// confidence up to 1e-9 above pass is still manual review and one up to 1e-9
// above reject is still rejected.
func Band(params policy.AggregationParams, confidence float64) models.Verdict {
	switch {
	case confidence <= params.RejectThreshold+boundaryEpsilon:
		return models.VerdictRejected
	case confidence > params.PassThreshold+boundaryEpsilon:
		return models.VerdictApproved
	default:
		return models.VerdictManualReview
	}
}

// ruleScore is the signed advisory evidence rescaled from [-1,1] to [0,1].
func ruleScore(params policy.AggregationParams, groups ...[]models.RuleOutcome) (float64, bool) {
	var net, total float64
	for _, outcomes := range groups {
		for _, o := range outcomes {
			if o.IsBlocking() || !o.Applicable {
				continue
			}
			net += o.Contribution
			total += math.Abs(o.Weight)
		}
	}
	if total == 0 {
		return params.NeutralScore, true
	}
	return clamp((net/total + 1) / 2), false
}

func classifierScore(params policy.AggregationParams, signals []models.ClassifierSignal) (float64, bool) {
	var sum, weights float64
	for _, s := range signals {
		w := params.SignalWeight(s.Name)
		if w == 0 {
			continue
		}
		sum += w * s.Confidence
		weights += w
	}
	if weights == 0 {
		return params.NeutralScore, true
	}
	return clamp(sum / weights), false
}

func mostRestrictive(a, b models.Verdict) models.Verdict {
	if b.Restrictiveness() > a.Restrictiveness() {
		return b
	}
	return a
}

func describeFailure(kind string, o models.RuleOutcome) string {
	if o.Message == "" {
		return fmt.Sprintf("%s %s failed", kind, o.RuleID)
	}
	return fmt.Sprintf("%s %s failed: %s", kind, o.RuleID, o.Message)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func format(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
