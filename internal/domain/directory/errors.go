package directory

import "errors"

var (
	// ErrInvalidEntry is returned for an employee without a name.
	ErrInvalidEntry = errors.New("invalid directory entry")
	// ErrConflict is returned when one key points at two employees.
	ErrConflict = errors.New("conflicting directory key")
)
