package delegation

import "errors"

// Sentinel errors. Delegate reports these as response error strings; the
// query methods return them wrapped.
var (
	ErrNotFound          = errors.New("delegation: not found")
	ErrUnavailable       = errors.New("delegation: worker unavailable")
	ErrMissingCapability = errors.New("delegation: missing capability")
	ErrValidation        = errors.New("delegation: invalid request")
	ErrExecution         = errors.New("delegation: execution failed")
)
