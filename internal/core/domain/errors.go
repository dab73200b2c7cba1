package domain

import "errors"

// =============================================================================
// Error Taxonomy
// =============================================================================

// Sentinel errors shared across the pipeline. Services wrap these with
// context via fmt.Errorf("%w: ..."); the API layer maps them to HTTP status
// codes with errors.Is.
var (
	// ErrNotFound is returned when a store, deployment, or domain binding
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input (bad hostname, bad
	// pagination parameters, unknown environment).
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a domain is already bound to another
	// store, or when a deploy is already in flight for the store.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned when the caller is neither the owning
	// store's user nor an administrator.
	ErrUnauthorized = errors.New("not authorized")

	// ErrRender is returned when a store snapshot is structurally invalid
	// and cannot be rendered.
	ErrRender = errors.New("render failed")

	// ErrWrite is returned when persisting build output to durable storage
	// fails.
	ErrWrite = errors.New("build write failed")
)
