package facts

import (
	"sort"
)

// Model maps fact names to facts for one verification session. It is built
// once and read concurrently without locking; nothing mutates it after
// construction.
type Model struct {
	facts map[string]Fact
	names []string
}

// NewModel builds a Model, rejecting unnamed facts and duplicate names.
func NewModel(fs ...Fact) (*Model, error) {
	m := &Model{facts: make(map[string]Fact, len(fs))}
	for _, f := range fs {
		if err := m.add(f); err != nil {
			return nil, err
		}
	}
	sort.Strings(m.names)
	return m, nil
}

func (m *Model) add(f Fact) error {
	if f.name == "" {
		return &FactValueError{Reason: "fact name is required"}
	}
	if !f.kind.Valid() {
		return &FactValueError{Name: f.name, Reason: "fact kind is required"}
	}
	if existing, ok := m.facts[f.name]; ok {
		return &DuplicateFactError{
			Name:        f.name,
			Provenances: []string{provenanceOrUnknown(existing), provenanceOrUnknown(f)},
		}
	}
	m.facts[f.name] = f
	m.names = append(m.names, f.name)
	return nil
}

func provenanceOrUnknown(f Fact) string {
	if f.provenance == "" {
		return "unknown"
	}
	return f.provenance
}

// Overlay returns a new Model holding m's facts plus extra. m is unchanged.
// A name already present in m is a DuplicateFactError.
func (m *Model) Overlay(extra ...Fact) (*Model, error) {
	out := &Model{facts: make(map[string]Fact, m.Len()+len(extra))}
	if m != nil {
		for _, name := range m.names {
			out.facts[name] = m.facts[name]
			out.names = append(out.names, name)
		}
	}
	for _, f := range extra {
		if err := out.add(f); err != nil {
			return nil, err
		}
	}
	sort.Strings(out.names)
	return out, nil
}

// Get looks up a fact by name.
func (m *Model) Get(name string) (Fact, bool) {
	if m == nil {
		return Fact{}, false
	}
	f, ok := m.facts[name]
	return f, ok
}

// Has reports whether name is present.
func (m *Model) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Len returns the number of facts.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.facts)
}

// Names returns the sorted fact names.
func (m *Model) Names() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.names...)
}

// Facts returns the facts ordered by name.
func (m *Model) Facts() []Fact {
	if m == nil {
		return nil
	}
	out := make([]Fact, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, m.facts[name])
	}
	return out
}
