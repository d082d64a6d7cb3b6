package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionEnded      = errors.New("session already ended")
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrStaleWrite means a record with a newer updated_at is already stored.
	ErrStaleWrite = errors.New("newer progress already stored")
)

// PersistenceError wraps a failed read or write against the progress store.
// These are transient from the caller's point of view.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsPersistenceError(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
