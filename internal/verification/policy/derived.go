package policy

import (
	"fmt"
	"strings"
)

// DerivedOp names an arithmetic derivation.
type DerivedOp string

const (
	DerivedRatio      DerivedOp = "ratio"
	DerivedProduct    DerivedOp = "product"
	DerivedSum        DerivedOp = "sum"
	DerivedDifference DerivedOp = "difference"
)

// DerivedFact is a number computed from other facts before rules run, for
// example ltv = ratio(loan_amount, property_value).
type DerivedFact struct {
	Name   string    `yaml:"name" json:"name"`
	Op     DerivedOp `yaml:"op" json:"op"`
	Inputs []string  `yaml:"inputs" json:"inputs"`
}

func (d DerivedFact) validate(policyID string) error {
	if d.Name == "" {
		return &PolicyError{PolicyID: policyID, Reason: "derived fact without a name"}
	}
	fail := func(reason string) error {
		return &PolicyError{PolicyID: policyID, Reason: fmt.Sprintf("derived fact %s: %s", d.Name, reason)}
	}
	switch d.Op {
	case DerivedRatio, DerivedDifference:
		if len(d.Inputs) != 2 {
			return fail(fmt.Sprintf("%s takes exactly 2 inputs, got %d", d.Op, len(d.Inputs)))
		}
	case DerivedSum, DerivedProduct:
		if len(d.Inputs) < 2 {
			return fail(fmt.Sprintf("%s takes at least 2 inputs, got %d", d.Op, len(d.Inputs)))
		}
	default:
		return fail(fmt.Sprintf("undefined operator %q", d.Op))
	}
	for _, in := range d.Inputs {
		if in == "" {
			return fail("empty input name")
		}
	}
	return nil
}

// DerivedOrder returns the derived facts of p in dependency order, so every
// derived fact follows the derived facts it reads. Ties keep declaration
// order. A cycle is a PolicyError naming the path.
func DerivedOrder(p *Policy) ([]DerivedFact, error) {
	byName := make(map[string]DerivedFact, len(p.Derived))
	for _, d := range p.Derived {
		if _, dup := byName[d.Name]; dup {
			return nil, &PolicyError{PolicyID: p.ID, Reason: fmt.Sprintf("duplicate derived fact %s", d.Name)}
		}
		byName[d.Name] = d
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(byName))
	order := make([]DerivedFact, 0, len(p.Derived))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, n := range path {
				if n == name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), name)
			return &PolicyError{
				PolicyID: p.ID,
				Reason:   "cyclic derived fact reference: " + strings.Join(cycle, " -> "),
			}
		}
		state[name] = visiting
		path = append(path, name)
		d := byName[name]
		for _, in := range d.Inputs {
			if _, derived := byName[in]; derived {
				if err := visit(in); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		order = append(order, d)
		return nil
	}

	for _, d := range p.Derived {
		if err := visit(d.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
