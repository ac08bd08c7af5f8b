// Package errors defines the sentinel errors shared by every layer. Use cases
// return them, the listener turns them into ack decisions and the HTTP layer
// into status codes.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the request clashes with current state.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates input that can never succeed as sent.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates a transient infrastructure failure that left no
	// partial state: lock wait timeout, deadlock or lost connection.
	ErrUnavailable = errors.New("unavailable")
)

// Wrap prefixes err with message, keeping it matchable with Is.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// MarkTransient returns err tagged with ErrUnavailable. The cause stays
// reachable through errors.Is and errors.As.
func MarkTransient(err error) error {
	if err == nil || IsTransient(err) {
		return err
	}
	return &transientError{cause: err}
}

type transientError struct {
	cause error
}

func (e *transientError) Error() string {
	return ErrUnavailable.Error() + ": " + e.cause.Error()
}

func (e *transientError) Unwrap() []error {
	return []error{ErrUnavailable, e.cause}
}
