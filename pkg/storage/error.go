package storage

import "errors"

// ErrNotFound matches every NotFoundError with errors.Is.
var ErrNotFound = errors.New("session not found")

// ErrAmbiguousID is returned by Resolve when an ID prefix matches several
// records.
var ErrAmbiguousID = errors.New("session ID prefix is ambiguous")

// NotFoundError is returned when a record doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return ErrNotFound.Error()
	}

	return ErrNotFound.Error() + ": " + e.ID
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
