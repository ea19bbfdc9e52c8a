package rules

import (
	"fmt"
	"math"
	"time"

	"docverify/internal/verification/facts"
	"docverify/internal/verification/policy"
)

// scaleFactors are the magnitude slips accepted by agree with scale
// correction, such as an amount read in thousands by one extractor.
var scaleFactors = []float64{10, 100}

// ratioEpsilon absorbs float noise when matching a scale factor exactly.
const ratioEpsilon = 1e-9

// eval interprets n against view. Every fact the condition requires is
// present; composites short-circuit left to right.
func eval(ruleID string, n *node, view *facts.Model) (bool, error) {
	c := n.cond
	typeErr := func(fact, format string, args ...any) error {
		return &policy.ConditionTypeError{RuleID: ruleID, Fact: fact, Op: c.Op, Reason: fmt.Sprintf(format, args...)}
	}

	switch c.Op {
	case policy.OpAll:
		for _, child := range n.children {
			ok, err := eval(ruleID, child, view)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case policy.OpAny:
		for _, child := range n.children {
			ok, err := eval(ruleID, child, view)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case policy.OpNot:
		ok, err := eval(ruleID, n.children[0], view)
		return !ok, err
	case policy.OpPresent:
		return view.Has(c.Fact), nil
	}

	f, _ := view.Get(c.Fact)
	switch c.Op {
	case policy.OpEq, policy.OpNeq:
		eq, err := equalsLiteral(f, c.Value)
		if err != nil {
			return false, typeErr(c.Fact, "%v", err)
		}
		return eq == (c.Op == policy.OpEq), nil

	case policy.OpIn:
		for _, v := range c.Values {
			eq, err := equalsLiteral(f, v)
			if err != nil {
				return false, typeErr(c.Fact, "%v", err)
			}
			if eq {
				return true, nil
			}
		}
		return false, nil

	case policy.OpRange:
		return inRange(f, c, typeErr)

	case policy.OpMatches:
		text, ok := f.Text()
		if !ok {
			return false, typeErr(c.Fact, "pattern match requires a string or category fact, got %s", f.Kind())
		}
		return n.re.MatchString(text), nil
	}

	g, _ := view.Get(c.Other)
	switch c.Op {
	case policy.OpFieldEq, policy.OpFieldNeq:
		if !comparableKinds(f.Kind(), g.Kind()) {
			return false, typeErr(c.Fact, "cannot compare %s with %s fact %q", f.Kind(), g.Kind(), c.Other)
		}
		eq := f.Value() == g.Value()
		return eq == (c.Op == policy.OpFieldEq), nil

	case policy.OpFieldLt, policy.OpFieldLte, policy.OpFieldGt, policy.OpFieldGte:
		a, b, ok := orderedPair(f, g)
		if !ok {
			return false, typeErr(c.Fact, "ordering requires two numbers or two dates, got %s and %s", f.Kind(), g.Kind())
		}
		switch c.Op {
		case policy.OpFieldLt:
			return a < b, nil
		case policy.OpFieldLte:
			return a <= b, nil
		case policy.OpFieldGt:
			return a > b, nil
		default:
			return a >= b, nil
		}

	case policy.OpAgree:
		a, okA := f.Number()
		b, okB := g.Number()
		if !okA || !okB {
			return false, typeErr(c.Fact, "agreement requires two numbers, got %s and %s", f.Kind(), g.Kind())
		}
		tol := c.Tolerance
		if tol == 0 {
			tol = policy.DefaultAgreementTolerance
		}
		return Agree(a, b, tol, c.ScaleCorrection), nil

	case policy.OpNameMatch:
		a, okA := f.Text()
		b, okB := g.Text()
		if !okA || !okB {
			return false, typeErr(c.Fact, "name match requires two text facts, got %s and %s", f.Kind(), g.Kind())
		}
		return facts.NamesMatch(a, b), nil
	}

	return false, &policy.PolicyError{RuleID: ruleID, Reason: fmt.Sprintf("undefined operator %q", c.Op)}
}

// Agree reports whether a and b differ by at most tol relative to the larger
// magnitude. A zero on either side is a failed reading and never agrees.
// With scaleCorrection, values whose ratio is exactly 10 or 100 also agree.
func Agree(a, b, tol float64, scaleCorrection bool) bool {
	if a == 0 || b == 0 {
		return false
	}
	bigger := math.Max(math.Abs(a), math.Abs(b))
	if math.Abs(a-b) <= tol*bigger {
		return true
	}
	if !scaleCorrection || (a < 0) != (b < 0) {
		return false
	}
	ratio := bigger / math.Min(math.Abs(a), math.Abs(b))
	for _, k := range scaleFactors {
		if math.Abs(ratio-k) <= ratioEpsilon*k {
			return true
		}
	}
	return false
}

func comparableKinds(a, b facts.Kind) bool {
	return a == b || (a.Textual() && b.Textual())
}

func orderedPair(f, g facts.Fact) (float64, float64, bool) {
	if a, ok := f.Number(); ok {
		b, ok := g.Number()
		return a, b, ok
	}
	if a, ok := f.Date(); ok {
		b, ok := g.Date()
		return float64(a.Unix()), float64(b.Unix()), ok
	}
	return 0, 0, false
}

// equalsLiteral compares a fact to a decoded policy literal.
func equalsLiteral(f facts.Fact, lit any) (bool, error) {
	switch f.Kind() {
	case facts.KindString, facts.KindCategory:
		s, ok := policy.LiteralString(lit)
		if !ok {
			return false, fmt.Errorf("%s fact compared with %s", f.Kind(), policy.FormatLiteral(lit))
		}
		text, _ := f.Text()
		return text == s, nil
	case facts.KindNumber:
		want, ok := policy.LiteralNumber(lit)
		if !ok {
			return false, fmt.Errorf("number fact compared with %q", policy.FormatLiteral(lit))
		}
		got, _ := f.Number()
		return got == want, nil
	case facts.KindBool:
		want, ok := policy.LiteralBool(lit)
		if !ok {
			return false, fmt.Errorf("bool fact compared with %q", policy.FormatLiteral(lit))
		}
		got, _ := f.Bool()
		return got == want, nil
	case facts.KindDate:
		want, err := literalDate(lit)
		if err != nil {
			return false, err
		}
		got, _ := f.Date()
		return got.Equal(want), nil
	}
	return false, fmt.Errorf("unsupported fact kind %s", f.Kind())
}

func literalDate(lit any) (time.Time, error) {
	s, ok := policy.LiteralString(lit)
	if !ok {
		return time.Time{}, fmt.Errorf("date fact compared with %s", policy.FormatLiteral(lit))
	}
	d, err := facts.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date literal %q: %w", s, err)
	}
	day, _ := facts.Date("", d).Date()
	return day, nil
}

func inRange(f facts.Fact, c policy.Condition, typeErr func(fact, format string, args ...any) error) (bool, error) {
	var v, lo, hi float64
	hasLo, hasHi := c.Min != nil, c.Max != nil

	switch f.Kind() {
	case facts.KindNumber:
		v, _ = f.Number()
		var ok bool
		if hasLo {
			if lo, ok = policy.LiteralNumber(c.Min); !ok {
				return false, typeErr(c.Fact, "number fact with non-numeric min %s", policy.FormatLiteral(c.Min))
			}
		}
		if hasHi {
			if hi, ok = policy.LiteralNumber(c.Max); !ok {
				return false, typeErr(c.Fact, "number fact with non-numeric max %s", policy.FormatLiteral(c.Max))
			}
		}
	case facts.KindDate:
		d, _ := f.Date()
		v = float64(d.Unix())
		if hasLo {
			t, err := literalDate(c.Min)
			if err != nil {
				return false, typeErr(c.Fact, "%v", err)
			}
			lo = float64(t.Unix())
		}
		if hasHi {
			t, err := literalDate(c.Max)
			if err != nil {
				return false, typeErr(c.Fact, "%v", err)
			}
			hi = float64(t.Unix())
		}
	default:
		return false, typeErr(c.Fact, "range requires a number or date fact, got %s", f.Kind())
	}

	if hasLo && (v < lo || (c.MinExclusive && v == lo)) {
		return false, nil
	}
	if hasHi && (v > hi || (c.MaxExclusive && v == hi)) {
		return false, nil
	}
	return true, nil
}
