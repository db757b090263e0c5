package llm

import (
	"errors"
)

// Completion failures are classified at the HTTP boundary so the retry loop
// knows whether another attempt against the same endpoint can help. Timeouts,
// rate limits and 5xx responses are transient; auth and bad-request failures
// are fatal and skip straight to the next model in the fallback chain.

// TransientError marks a failure worth retrying on the same endpoint.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps err so IsTransient reports true for it.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError marks a failure that no amount of retrying will fix.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps err so IsFatal reports true for it.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err carries a TransientError anywhere in its
// chain.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
