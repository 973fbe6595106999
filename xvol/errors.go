/*
	This file defines the error categories surfaced by the volume data model.
*/

package xvol

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch marks a wrong argument type or an operation applied to a
	// volume whose datatype is incompatible with it.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrDomain marks a value outside an enumerated or numeric domain.
	ErrDomain = errors.New("domain constraint violation")

	// ErrPrecondition marks an operation whose required context is absent,
	// e.g., no parent volume, undefined AC/PC, or a non-homogeneous collection.
	ErrPrecondition = errors.New("missing precondition")

	// ErrFormat marks a file whose extension, root element, or version does not
	// match the expected schema.
	ErrFormat = errors.New("bad file format")
)

// TypeMismatchf returns an ErrTypeMismatch-wrapped error.
func TypeMismatchf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTypeMismatch, fmt.Sprintf(format, args...))
}

// DomainErrorf returns an ErrDomain-wrapped error. The offending value should
// be embedded in the message.
func DomainErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDomain, fmt.Sprintf(format, args...))
}

// PreconditionErrorf returns an ErrPrecondition-wrapped error.
func PreconditionErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// FormatErrorf returns an ErrFormat-wrapped error carrying the file path.
func FormatErrorf(path, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrFormat, path, fmt.Sprintf(format, args...))
}
