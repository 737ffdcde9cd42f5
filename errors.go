package gatekeeper

import "errors"

// Sentinel errors returned by the management services. Callers discriminate
// with errors.Is and map them to transport-level responses.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid request")
)
