package policy

import (
	"fmt"
	"math"
)

// BlockingBehavior selects the verdict forced by a failed blocking rule.
type BlockingBehavior string

const (
	BlockingReject       BlockingBehavior = "reject"
	BlockingManualReview BlockingBehavior = "manual_review"
)

// InapplicableBlocking selects how a blocking rule that could not be evaluated
// (missing facts) affects an otherwise approving verdict.
type InapplicableBlocking string

const (
	InapplicableManualReview InapplicableBlocking = "manual_review"
	InapplicableIgnore       InapplicableBlocking = "ignore"
)

// Documented defaults. Every value can be overridden per policy.
const (
	DefaultPassThreshold    = 0.7
	DefaultRejectThreshold  = 0.4
	DefaultRuleWeight       = 0.6
	DefaultClassifierWeight = 0.4
	DefaultNeutralScore     = 0.5
)

// AggregationParams configures the consensus fold.
type AggregationParams struct {
	PassThreshold   float64 `yaml:"pass_threshold" json:"pass_threshold"`
	RejectThreshold float64 `yaml:"reject_threshold" json:"reject_threshold"`

	// RuleWeight and ClassifierWeight form the convex combination of the rule
	// and classifier scores; they are normalized to sum to one.
	RuleWeight       float64 `yaml:"rule_weight" json:"rule_weight"`
	ClassifierWeight float64 `yaml:"classifier_weight" json:"classifier_weight"`

	// NeutralScore stands in for a score with no evidence behind it.
	NeutralScore float64 `yaml:"neutral_score" json:"neutral_score"`

	// ClassifierWeights weights individual signals by name. Unlisted signals
	// weigh 1.
	ClassifierWeights map[string]float64 `yaml:"classifier_weights,omitempty" json:"classifier_weights,omitempty"`

	BlockingBehavior     BlockingBehavior     `yaml:"blocking_behavior,omitempty" json:"blocking_behavior,omitempty"`
	InapplicableBlocking InapplicableBlocking `yaml:"inapplicable_blocking,omitempty" json:"inapplicable_blocking,omitempty"`
}

// DefaultAggregationParams returns the documented defaults.
func DefaultAggregationParams() AggregationParams {
	return AggregationParams{
		PassThreshold:        DefaultPassThreshold,
		RejectThreshold:      DefaultRejectThreshold,
		RuleWeight:           DefaultRuleWeight,
		ClassifierWeight:     DefaultClassifierWeight,
		NeutralScore:         DefaultNeutralScore,
		BlockingBehavior:     BlockingReject,
		InapplicableBlocking: InapplicableManualReview,
	}
}

// Validate checks the parameters for consistency.
func (a AggregationParams) Validate() error {
	unit := []struct {
		field string
		v     float64
	}{
		{"pass_threshold", a.PassThreshold},
		{"reject_threshold", a.RejectThreshold},
		{"neutral_score", a.NeutralScore},
	}
	for _, u := range unit {
		if math.IsNaN(u.v) || u.v < 0 || u.v > 1 {
			return &AggregationError{Field: u.field, Reason: fmt.Sprintf("must be within [0,1], got %v", u.v)}
		}
	}
	if a.RejectThreshold > a.PassThreshold {
		return &AggregationError{
			Field:  "reject_threshold",
			Reason: fmt.Sprintf("reject threshold %v exceeds pass threshold %v", a.RejectThreshold, a.PassThreshold),
		}
	}
	if !nonNegative(a.RuleWeight) || !nonNegative(a.ClassifierWeight) {
		return &AggregationError{Field: "rule_weight", Reason: "combination weights must be finite and non-negative"}
	}
	if a.RuleWeight+a.ClassifierWeight == 0 {
		return &AggregationError{Field: "rule_weight", Reason: "rule and classifier weights cannot both be zero"}
	}
	for name, w := range a.ClassifierWeights {
		if !nonNegative(w) {
			return &AggregationError{Field: "classifier_weights." + name, Reason: "must be finite and non-negative"}
		}
	}
	switch a.BlockingBehavior {
	case "", BlockingReject, BlockingManualReview:
	default:
		return &AggregationError{Field: "blocking_behavior", Reason: fmt.Sprintf("unknown behavior %q", a.BlockingBehavior)}
	}
	switch a.InapplicableBlocking {
	case "", InapplicableManualReview, InapplicableIgnore:
	default:
		return &AggregationError{Field: "inapplicable_blocking", Reason: fmt.Sprintf("unknown behavior %q", a.InapplicableBlocking)}
	}
	return nil
}

// CombinationWeights returns the rule and classifier weights normalized to a
// convex combination.
func (a AggregationParams) CombinationWeights() (rule, classifier float64) {
	sum := a.RuleWeight + a.ClassifierWeight
	if sum == 0 {
		return DefaultRuleWeight, DefaultClassifierWeight
	}
	return a.RuleWeight / sum, a.ClassifierWeight / sum
}

// SignalWeight returns the weight of the named classifier signal.
func (a AggregationParams) SignalWeight(name string) float64 {
	if w, ok := a.ClassifierWeights[name]; ok {
		return w
	}
	return 1
}

// Blocking returns the effective blocking behavior.
func (a AggregationParams) Blocking() BlockingBehavior {
	if a.BlockingBehavior == "" {
		return BlockingReject
	}
	return a.BlockingBehavior
}

// Inapplicable returns the effective inapplicable-blocking behavior.
func (a AggregationParams) Inapplicable() InapplicableBlocking {
	if a.InapplicableBlocking == "" {
		return InapplicableManualReview
	}
	return a.InapplicableBlocking
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
