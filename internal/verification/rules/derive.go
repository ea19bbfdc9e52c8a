package rules

import (
	"fmt"

	"docverify/internal/verification/facts"
	"docverify/internal/verification/policy"
)

// derive computes the policy's derived facts over m. A derived fact with a
// missing input, or a ratio over zero, is left absent.
func (p *Program) derive(m *facts.Model) (*facts.Model, error) {
	view := m
	for _, d := range p.derived {
		values := make([]float64, 0, len(d.Inputs))
		complete := true
		for _, in := range d.Inputs {
			f, ok := view.Get(in)
			if !ok {
				complete = false
				break
			}
			n, ok := f.Number()
			if !ok {
				return nil, &policy.ConditionTypeError{
					RuleID: "derived:" + d.Name,
					Fact:   in,
					Op:     policy.Op(d.Op),
					Reason: fmt.Sprintf("input is %s, not number", f.Kind()),
				}
			}
			values = append(values, n)
		}
		if !complete {
			continue
		}
		v, ok := compute(d.Op, values)
		if !ok {
			continue
		}
		next, err := view.Overlay(facts.Number(d.Name, v).WithProvenance("derived:" + string(d.Op)))
		if err != nil {
			return nil, err
		}
		view = next
	}
	return view, nil
}

func compute(op policy.DerivedOp, in []float64) (float64, bool) {
	switch op {
	case policy.DerivedRatio:
		if in[1] == 0 {
			return 0, false
		}
		return in[0] / in[1], true
	case policy.DerivedDifference:
		return in[0] - in[1], true
	case policy.DerivedSum:
		total := 0.0
		for _, v := range in {
			total += v
		}
		return total, true
	case policy.DerivedProduct:
		total := 1.0
		for _, v := range in {
			total *= v
		}
		return total, true
	}
	return 0, false
}
