package common

import (
	"errors"
	"fmt"
)

// Error kinds shared by every engine. Module sentinels wrap exactly one of
// these so callers can branch on the category with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("authorization error")
	ErrTiming        = errors.New("timing error")
	ErrCapacity      = errors.New("capacity error")
	ErrState         = errors.New("state error")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Validation tags msg as a malformed-input failure.
func Validation(msg string) error { return &kindError{kind: ErrValidation, msg: msg} }

// Authorization tags msg as a caller permission failure.
func Authorization(msg string) error { return &kindError{kind: ErrAuthorization, msg: msg} }

// Timing tags msg as a time-window failure.
func Timing(msg string) error { return &kindError{kind: ErrTiming, msg: msg} }

// Capacity tags msg as a bound or cap failure.
func Capacity(msg string) error { return &kindError{kind: ErrCapacity, msg: msg} }

// State tags msg as an operation that is invalid in the current mode.
func State(msg string) error { return &kindError{kind: ErrState, msg: msg} }

// TimingError carries the deadline relevant to a rejected call so clients can
// tell when to retry.
type TimingError struct {
	Err      error
	Deadline uint64
}

// NewTimingError wraps a module timing sentinel with its deadline.
func NewTimingError(err error, deadline uint64) *TimingError {
	return &TimingError{Err: err, Deadline: deadline}
}

func (e *TimingError) Error() string {
	return fmt.Sprintf("%v (deadline %d)", e.Err, e.Deadline)
}

func (e *TimingError) Unwrap() error { return e.Err }

// DeadlineOf extracts the deadline from a timing failure.
func DeadlineOf(err error) (uint64, bool) {
	var te *TimingError
	if errors.As(err, &te) {
		return te.Deadline, true
	}
	return 0, false
}

// KindOf returns the taxonomy sentinel err belongs to, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrAuthorization, ErrTiming, ErrCapacity, ErrState} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
