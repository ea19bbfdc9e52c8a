package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	p, err := ParseFile("testdata/loan_ltv.yaml")
	require.NoError(t, err)

	assert.Equal(t, Ref{ID: "loan_ltv", Version: "1.2.0"}, p.Ref())
	require.Len(t, p.Rules, 3)
	assert.Equal(t, "ltv_within_limit", p.Rules[0].ID)
	assert.Equal(t, SeverityBlocking, p.Rules[0].Severity)
	assert.Equal(t, 0.8, p.Rules[0].Condition.Max)
	assert.True(t, p.Rules[2].Condition.ScaleCorrection)
	require.Len(t, p.Derived, 1)
	assert.Equal(t, DerivedRatio, p.Derived[0].Op)

	t.Run("omitted aggregation parameters keep defaults", func(t *testing.T) {
		assert.Equal(t, 0.75, p.Aggregation.PassThreshold)
		assert.Equal(t, DefaultRejectThreshold, p.Aggregation.RejectThreshold)
		assert.Equal(t, DefaultRuleWeight, p.Aggregation.RuleWeight)
		assert.Equal(t, BlockingReject, p.Aggregation.BlockingBehavior)
	})
}

func TestParse(t *testing.T) {
	t.Run("json and yaml decode to the same policy", func(t *testing.T) {
		fromYAML, err := Parse([]byte(`
id: p
version: 1.0.0
rules:
  - id: r1
    severity: advisory
    weight: 1
    condition: {op: eq, fact: age, value: 30}
`), FormatYAML)
		require.NoError(t, err)
		fromJSON, err := Parse([]byte(`{"id":"p","version":"1.0.0","rules":[
			{"id":"r1","severity":"advisory","weight":1,"condition":{"op":"eq","fact":"age","value":30}}]}`), FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, fromJSON, fromYAML)
		assert.Equal(t, 30.0, fromYAML.Rules[0].Condition.Value)
	})

	t.Run("schema rejects unknown fields", func(t *testing.T) {
		_, err := Parse([]byte(`
id: p
version: 1.0.0
rules:
  - id: r1
    severity: advisory
    condition: {op: eq, fact: age, valu: 30}
`), FormatYAML)
		var pe *PolicyError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "p", pe.PolicyID)
		assert.Contains(t, pe.Reason, "schema")
	})

	t.Run("schema rejects missing rules", func(t *testing.T) {
		_, err := Parse([]byte(`{"id":"p","version":"1.0.0"}`), FormatJSON)
		var pe *PolicyError
		assert.True(t, errors.As(err, &pe))
	})

	t.Run("duplicate rule id survives the schema and fails validation", func(t *testing.T) {
		_, err := Parse([]byte(`
id: p
version: 1.0.0
rules:
  - {id: r1, severity: advisory, condition: {op: present, fact: a}}
  - {id: r1, severity: advisory, condition: {op: present, fact: b}}
`), FormatYAML)
		var pe *PolicyError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "r1", pe.RuleID)
		assert.Equal(t, "duplicate rule id", pe.Reason)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("id: [unterminated"), FormatYAML)
		var pe *PolicyError
		assert.True(t, errors.As(err, &pe))
	})

	t.Run("encode round trip", func(t *testing.T) {
		p := validPolicy()
		out, err := Encode(p, FormatYAML)
		require.NoError(t, err)
		back, err := Parse(out, FormatYAML)
		require.NoError(t, err)
		assert.Equal(t, p.Rules[1].Condition.Max, back.Rules[1].Condition.Max)
		assert.Equal(t, p.Aggregation, back.Aggregation)
	})
}
