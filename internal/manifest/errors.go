package manifest

import "errors"

// Sentinel errors returned by Load. All three are fatal: Load never returns
// a partial *Manifest alongside a non-nil error.
var (
	ErrNotFound          = errors.New("manifest: file not found")
	ErrMalformedXML      = errors.New("manifest: malformed xml")
	ErrInvariantViolation = errors.New("manifest: invariant violation")
)
