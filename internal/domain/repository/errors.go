package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist. Inactive
	// clients and revoked grants surface as ErrNotFound on purpose, so
	// callers cannot distinguish them.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness or constraint violation.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyUsed indicates a single-use record was already consumed.
	// The winner of a concurrent redemption race sees success; every loser
	// sees ErrAlreadyUsed.
	ErrAlreadyUsed = errors.New("already used")

	// ErrInvalidInput indicates the input fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
