// Package errors provides the error type used by blobconn. Every error carries a
// Category saying whose problem it is and a Type saying what kind of problem it is,
// so callers can react to classes of failure without string matching.
package errors

import (
	"errors"
	"fmt"

	"github.com/gostdlib/base/context"
)

// Category represents the broad category of an error.
type Category int

const (
	// CatUnknown indicates the category was not set. This is always a bug.
	CatUnknown Category = 0
	// CatInternal indicates a problem inside blobconn or the storage SDK.
	CatInternal Category = 1
	// CatUser indicates a problem with how the caller used blobconn.
	CatUser Category = 2
)

// String implements fmt.Stringer.
func (c Category) String() string {
	switch c {
	case CatInternal:
		return "Internal"
	case CatUser:
		return "User"
	}
	return "Unknown"
}

// Type represents the type of an error.
type Type int

const (
	// TypeUnknown indicates the type was not set. This is always a bug.
	TypeUnknown Type = 0
	// TypeParameter indicates a bad argument to a constructor or option.
	TypeParameter Type = 1
	// TypeBug indicates an internal invariant was violated.
	TypeBug Type = 2
	// TypeAuth indicates the credential material was rejected.
	TypeAuth Type = 3
	// TypeEndpoint indicates the endpoint URL was invalid.
	TypeEndpoint Type = 4
	// TypeState indicates a lifecycle call in the wrong state, such as closing
	// a connection that was never opened.
	TypeState Type = 5
	// TypeConn indicates a failure constructing or using the connection.
	TypeConn Type = 6
	// TypeRelease indicates a failure releasing connection resources.
	TypeRelease Type = 7
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case TypeParameter:
		return "Parameter"
	case TypeBug:
		return "Bug"
	case TypeAuth:
		return "Auth"
	case TypeEndpoint:
		return "Endpoint"
	case TypeState:
		return "State"
	case TypeConn:
		return "Conn"
	case TypeRelease:
		return "Release"
	}
	return "Unknown"
}

// Error is the concrete error type returned by blobconn packages.
type Error struct {
	// Category is the broad category of the error.
	Category Category
	// Type is the specific type of the error.
	Type Type
	// Err is the wrapped error.
	Err error
}

// Error implements the error interface.
func (e Error) Error() string {
	return fmt.Sprintf("(%s/%s): %s", e.Category, e.Type, e.Err)
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// E returns an Error wrapping err with the given Category and Type. If err is nil,
// this returns nil.
func E(ctx context.Context, c Category, t Type, err error) error {
	if err == nil {
		return nil
	}
	return Error{Category: c, Type: t, Err: err}
}

// CategoryOf returns the Category of err, or CatUnknown if err does not wrap an Error.
func CategoryOf(err error) Category {
	var e Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CatUnknown
}

// TypeOf returns the Type of err, or TypeUnknown if err does not wrap an Error.
func TypeOf(err error) Type {
	var e Error
	if errors.As(err, &e) {
		return e.Type
	}
	return TypeUnknown
}

// New is a passthrough to the standard library errors.New.
func New(text string) error {
	return errors.New(text)
}

// Errorf is a passthrough to fmt.Errorf.
func Errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Is is a passthrough to the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a passthrough to the standard library errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join is a passthrough to the standard library errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
