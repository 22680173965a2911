// Package failure defines the three ways an operation on the vehicle can fail.
package failure

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	None Kind = iota
	// General covers link, transport, decoding and I/O failures.
	General
	// InvalidRequest means caller input was rejected before touching the link.
	InvalidRequest
	// InvalidState means the vehicle is not in a state that allows the operation.
	InvalidState
)

func (k Kind) String() string {
	switch k {
	case General:
		return "general"
	case InvalidRequest:
		return "invalid_request"
	case InvalidState:
		return "invalid_state"
	}
	return "none"
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Cause() error {
	return e.Err
}

// Wrap returns err tagged as a general failure. Errors that already carry a
// kind are returned unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{General, err}
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return &Error{fe.Kind, errors.WithMessagef(err, format, args...)}
	}
	return &Error{General, errors.WithMessagef(err, format, args...)}
}

func Generalf(format string, args ...interface{}) error {
	return &Error{General, errors.Errorf(format, args...)}
}

func InvalidRequestf(format string, args ...interface{}) error {
	return &Error{InvalidRequest, fmt.Errorf(format, args...)}
}

func InvalidStatef(format string, args ...interface{}) error {
	return &Error{InvalidState, fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err. Untyped errors count as general failures.
func KindOf(err error) Kind {
	if err == nil {
		return None
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return General
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
