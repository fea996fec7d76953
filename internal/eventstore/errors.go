package eventstore

import (
	"errors"
	"fmt"
)

// ErrEventNotFound is returned by GetByID when no record exists for the
// requested delivery id.
var ErrEventNotFound = errors.New("event not found")

// ErrStoreNotOpen is returned when an operation is invoked on a store that
// is not in the Open state. This is an integration bug in the caller, not a
// runtime condition to recover from.
var ErrStoreNotOpen = errors.New("event store is not open")

// StorageError wraps a failure of the backing medium. Callers must log it
// and decide retry policy themselves; it is never a validation failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("eventstore: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
