// Package store provides policy store implementations: in-memory, file
// tree, PostgreSQL, Redis, and a circuit-broken fallback that combines two.
//
// All stores return sentinel.ErrNotFound for unknown ids or versions,
// sentinel.ErrConflict when saving a version that already exists (versions
// are immutable once published) and sentinel.ErrUnavailable when the backend
// cannot be reached.
package store

import (
	"fmt"
	"regexp"

	"docverify/internal/verification/policy"
	"docverify/pkg/platform/sentinel"
)

// idPattern bounds policy ids to names safe as file paths and cache keys.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidID reports whether id can name a stored policy.
func ValidID(id string) bool {
	return idPattern.MatchString(id) && id != "." && id != ".."
}

func checkID(id string) error {
	if !ValidID(id) {
		return fmt.Errorf("policy %q: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

// prepare validates p for storage and canonicalizes its version in place.
func prepare(p *policy.Policy) error {
	if err := policy.Validate(p); err != nil {
		return err
	}
	if !ValidID(p.ID) {
		return &policy.PolicyError{PolicyID: p.ID, Reason: "id is not storable"}
	}
	v, err := policy.CanonicalVersion(p.Version)
	if err != nil {
		return &policy.PolicyError{PolicyID: p.ID, Reason: err.Error()}
	}
	p.Version = v
	return nil
}
