package model

import "errors"

// Error taxonomy shared by the stores and the transport. Stores wrap these
// with context via fmt.Errorf("%w: ..."); callers test with errors.Is.
var (
	// ErrInvalidArgument marks a missing or malformed required field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks an absent removal target. It is a normal outcome.
	ErrNotFound = errors.New("not found")

	// ErrAllocationExhausted is returned once the name counter would overflow.
	ErrAllocationExhausted = errors.New("allocation exhausted")

	// ErrUnavailable marks an internal storage failure (e.g. the launch
	// queue file could not be written).
	ErrUnavailable = errors.New("unavailable")
)
