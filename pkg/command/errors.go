// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"errors"
	"fmt"
	"strings"
)

// Registration errors. They are returned wrapped in a *RegistrationError.
var (
	ErrInvalidCommandSignature = errors.New("invalid command signature")
	ErrUnsupportedType         = errors.New("unsupported parameter type")
	ErrDuplicatePositional     = errors.New("duplicate positional index")
	ErrDuplicateNamed          = errors.New("duplicate named argument")
	ErrConflictingBinding      = errors.New("conflicting parameter binding")
)

var (
	// ErrNotRegistered is returned by Run for a context whose command is not
	// in the registry. Callers should only run contexts returned by
	// ParseFirst.
	ErrNotRegistered = errors.New("command not registered")

	// ErrExit is returned by the built-in Exit command.
	ErrExit = errors.New("exit requested")

	// ErrUnknownOption is returned for option names that are not registered.
	ErrUnknownOption = errors.New("unknown option")
)

// ConversionReason says why a raw token could not be converted.
type ConversionReason int

const (
	FormatMismatch ConversionReason = iota + 1
	UnknownEnumValue
)

func (r ConversionReason) String() string {
	switch r {
	case FormatMismatch:
		return "format mismatch"
	case UnknownEnumValue:
		return "unknown enum value"
	}
	return "unknown"
}

// ConversionError is returned when a raw string cannot be converted to a
// parameter or option type.
type ConversionError struct {
	Reason  ConversionReason
	Value   string
	Type    string
	Symbols []string // valid symbols for UnknownEnumValue
	Err     error
}

func (e *ConversionError) Error() string {
	if e.Reason == UnknownEnumValue {
		return fmt.Sprintf("invalid %s value %q (expected one of %s)", e.Type, e.Value, strings.Join(e.Symbols, ", "))
	}
	return fmt.Sprintf("invalid %s value %q", e.Type, e.Value)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// BindReason says why a parameter could not be bound.
type BindReason int

const (
	MissingPositional BindReason = iota + 1
	MissingNamed
	InvalidValue
)

func (r BindReason) String() string {
	switch r {
	case MissingPositional:
		return "missing positional argument"
	case MissingNamed:
		return "missing named argument"
	case InvalidValue:
		return "invalid value"
	}
	return "unknown"
}

// BindError is returned by Run when a parameter cannot be resolved from the
// invocation context. It names the offending parameter.
type BindError struct {
	Command string
	Reason  BindReason
	Param   string
	Index   int    // for positional parameters
	Key     string // for named parameters
	Err     error
}

func (e *BindError) Error() string {
	var b strings.Builder
	b.WriteString("invalid arguments")
	if e.Command != "" {
		fmt.Fprintf(&b, " for %s", e.Command)
	}
	switch e.Reason {
	case MissingPositional:
		fmt.Fprintf(&b, ": argument %d (%s) was not provided", e.Index, e.Param)
	case MissingNamed:
		fmt.Fprintf(&b, ": argument -%s was not provided", e.Key)
	default:
		fmt.Fprintf(&b, ": %s: %v", e.Param, e.Err)
	}
	return b.String()
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// RegistrationError is returned when a command or option cannot be
// registered. It indicates a programming defect, not a runtime condition.
type RegistrationError struct {
	Command string
	Param   string
	Err     error
}

func (e *RegistrationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("register %s: parameter %s: %v", e.Command, e.Param, e.Err)
	}
	return fmt.Sprintf("register %s: %v", e.Command, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
