// Package facts holds the normalized evidence a verification session evaluates:
// typed, named values captured from extraction and classification collaborators.
package facts

import (
	"fmt"
	"strconv"
	"time"
)

// Kind enumerates the value types a fact may carry.
type Kind string

const (
	KindString   Kind = "string"
	KindNumber   Kind = "number"
	KindBool     Kind = "bool"
	KindDate     Kind = "date"
	KindCategory Kind = "category"
)

// DateLayout is the canonical rendering of date facts.
const DateLayout = "2006-01-02"

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown fact kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindBool, KindDate, KindCategory:
		return true
	}
	return false
}

// Textual reports whether values of k compare as text.
func (k Kind) Textual() bool {
	return k == KindString || k == KindCategory
}

// Ordered reports whether values of k support range and ordering comparisons.
func (k Kind) Ordered() bool {
	return k == KindNumber || k == KindDate
}

// Fact is a single typed datum. The zero value is not a valid fact; use the
// constructors. Facts are values and are never modified after construction.
type Fact struct {
	name       string
	kind       Kind
	text       string
	number     float64
	boolean    bool
	date       time.Time
	provenance string
}

// String creates a free-text fact.
func String(name, v string) Fact {
	return Fact{name: name, kind: KindString, text: v}
}

// Category creates a categorical fact, e.g. a document type label.
func Category(name, v string) Fact {
	return Fact{name: name, kind: KindCategory, text: v}
}

// Number creates a numeric fact.
func Number(name string, v float64) Fact {
	return Fact{name: name, kind: KindNumber, number: v}
}

// Bool creates a boolean fact.
func Bool(name string, v bool) Fact {
	return Fact{name: name, kind: KindBool, boolean: v}
}

// Date creates a date fact truncated to the UTC calendar day.
func Date(name string, v time.Time) Fact {
	u := v.UTC()
	return Fact{name: name, kind: KindDate, date: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// WithProvenance returns a copy of f tagged with its source collaborator.
func (f Fact) WithProvenance(p string) Fact {
	f.provenance = p
	return f
}

func (f Fact) Name() string       { return f.name }
func (f Fact) Kind() Kind         { return f.kind }
func (f Fact) Provenance() string { return f.provenance }

// Text returns the value of a string or category fact.
func (f Fact) Text() (string, bool) {
	return f.text, f.kind.Textual()
}

// Number returns the value of a numeric fact.
func (f Fact) Number() (float64, bool) {
	return f.number, f.kind == KindNumber
}

// Bool returns the value of a boolean fact.
func (f Fact) Bool() (bool, bool) {
	return f.boolean, f.kind == KindBool
}

// Date returns the value of a date fact.
func (f Fact) Date() (time.Time, bool) {
	return f.date, f.kind == KindDate
}

// Value returns the underlying value as a plain Go value.
func (f Fact) Value() any {
	switch f.kind {
	case KindNumber:
		return f.number
	case KindBool:
		return f.boolean
	case KindDate:
		return f.date.Format(DateLayout)
	default:
		return f.text
	}
}

// Display renders the value for justification messages.
func (f Fact) Display() string {
	switch f.kind {
	case KindNumber:
		return strconv.FormatFloat(f.number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(f.boolean)
	case KindDate:
		return f.date.Format(DateLayout)
	default:
		return f.text
	}
}
