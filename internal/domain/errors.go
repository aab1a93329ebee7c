package domain

import "errors"

// Error kinds returned by the study core. Check with errors.Is.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")

	// ErrDuplicate is raised by storage when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")
)

// Retryable reports whether the operation that produced err may be re-read and reapplied.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
