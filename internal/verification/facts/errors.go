package facts

import (
	"fmt"
	"strings"
)

// DuplicateFactError reports that a fact name was supplied more than once for
// one session. The session is aborted; no Decision is produced.
type DuplicateFactError struct {
	Name        string
	Provenances []string
}

func (e *DuplicateFactError) Error() string {
	if len(e.Provenances) == 0 {
		return fmt.Sprintf("duplicate fact %q", e.Name)
	}
	return fmt.Sprintf("duplicate fact %q supplied by %s", e.Name, strings.Join(e.Provenances, ", "))
}

// FactValueError reports a raw collaborator value that cannot be normalized
// into a typed fact.
type FactValueError struct {
	Name   string
	Kind   Kind
	Value  any
	Reason string
}

func (e *FactValueError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("fact %q: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("fact %q (%s) value %v: %s", e.Name, e.Kind, e.Value, e.Reason)
}
