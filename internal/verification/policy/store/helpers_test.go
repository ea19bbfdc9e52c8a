package store

import (
	"docverify/internal/verification/policy"
)

func testPolicy(id, version string) *policy.Policy {
	return &policy.Policy{
		ID:      id,
		Version: version,
		Rules: []policy.Rule{{
			ID:        "has_pan",
			Severity:  policy.SeverityAdvisory,
			Weight:    1,
			Condition: policy.Condition{Op: policy.OpPresent, Fact: "pan"},
		}},
		Aggregation: policy.DefaultAggregationParams(),
	}
}
