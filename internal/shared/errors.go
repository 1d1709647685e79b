package shared

import "errors"

// Sentinel errors forming the engine's error taxonomy. Domain packages wrap
// these with fmt.Errorf("%w: ...") so handlers can classify with errors.Is.
var (
	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a state conflict, e.g. duplicate cheque number
	// or an overpayment attempt.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates the id is absent or belongs to another organization.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates a disallowed status change.
	ErrInvalidTransition = errors.New("invalid transition")
)
