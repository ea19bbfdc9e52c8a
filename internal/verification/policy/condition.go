package policy

// Op names a condition variant.
type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpRange   Op = "range"
	OpIn      Op = "in"
	OpMatches Op = "matches"
	OpPresent Op = "present"

	OpFieldEq  Op = "field_eq"
	OpFieldNeq Op = "field_neq"
	OpFieldLt  Op = "field_lt"
	OpFieldLte Op = "field_lte"
	OpFieldGt  Op = "field_gt"
	OpFieldGte Op = "field_gte"

	// OpAgree holds when two numeric facts agree within a relative tolerance.
	OpAgree Op = "agree"
	// OpNameMatch holds when two person names are equal or one contains the
	// other after normalization.
	OpNameMatch Op = "name_match"

	OpAll Op = "all"
	OpAny Op = "any"
	OpNot Op = "not"
)

// DefaultAgreementTolerance is the relative tolerance used by agree when the
// condition does not set one.
const DefaultAgreementTolerance = 0.05

// Condition is a tagged predicate. Which fields are meaningful depends on Op.
type Condition struct {
	Op Op `yaml:"op" json:"op"`

	// Fact is the fact under test; Other is the second fact for cross-field
	// operators.
	Fact  string `yaml:"fact,omitempty" json:"fact,omitempty"`
	Other string `yaml:"other,omitempty" json:"other,omitempty"`

	Value  any   `yaml:"value,omitempty" json:"value,omitempty"`
	Values []any `yaml:"values,omitempty" json:"values,omitempty"`

	Min          any  `yaml:"min,omitempty" json:"min,omitempty"`
	Max          any  `yaml:"max,omitempty" json:"max,omitempty"`
	MinExclusive bool `yaml:"min_exclusive,omitempty" json:"min_exclusive,omitempty"`
	MaxExclusive bool `yaml:"max_exclusive,omitempty" json:"max_exclusive,omitempty"`

	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	Tolerance       float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
	ScaleCorrection bool    `yaml:"scale_correction,omitempty" json:"scale_correction,omitempty"`

	Conditions []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// IsComposite reports whether the condition combines child conditions.
func (c Condition) IsComposite() bool {
	return c.Op == OpAll || c.Op == OpAny || c.Op == OpNot
}

// IsCrossField reports whether the condition compares two facts.
func (c Condition) IsCrossField() bool {
	switch c.Op {
	case OpFieldEq, OpFieldNeq, OpFieldLt, OpFieldLte, OpFieldGt, OpFieldGte, OpAgree, OpNameMatch:
		return true
	}
	return false
}

// RequiredFacts lists the facts whose absence makes the condition
// inapplicable, in first-reference order. Facts referenced only by present
// are not required.
func (c Condition) RequiredFacts() []string {
	seen := make(map[string]bool)
	var out []string
	c.collect(seen, &out)
	return out
}

func (c Condition) collect(seen map[string]bool, out *[]string) {
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			*out = append(*out, name)
		}
	}
	switch {
	case c.Op == OpPresent:
	case c.IsComposite():
		for _, child := range c.Conditions {
			child.collect(seen, out)
		}
	case c.IsCrossField():
		add(c.Fact)
		add(c.Other)
	default:
		add(c.Fact)
	}
}
