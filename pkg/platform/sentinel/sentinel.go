package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Policy stores, caches and audit
// sinks return these (optionally wrapped) so the session service can translate
// them into domain error codes:
//   - ErrNotFound: no policy exists for the requested id/version
//   - ErrConflict: a policy version is already stored and versions are immutable
//   - ErrUnavailable: the backing store cannot be reached
//   - ErrInvalidState: stored data could not be decoded into a valid record
//
// Policy authoring defects are not sentinels; they are typed errors in the
// policy package.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
