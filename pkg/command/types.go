// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"strconv"
	"strings"
)

// Kind identifies an entry in the converter table.
type Kind int

const (
	// KindInvalid is the zero Kind. Types of this kind are rejected at
	// registration time.
	KindInvalid Kind = iota
	KindString
	KindInt
	KindUint
	KindBool
	KindEnum
)

// Type is the target type of a parameter or option. Only the types built by
// this package (String, Int, Uint, Bool, Enum and Nullable of those) are
// valid; the zero Type is not.
type Type struct {
	kind     Kind
	name     string
	nullable bool
	symbols  []string
}

var (
	String = Type{kind: KindString, name: "string"}
	Int    = Type{kind: KindInt, name: "int"}
	Uint   = Type{kind: KindUint, name: "uint"}
	Bool   = Type{kind: KindBool, name: "bool"}
)

// Enum returns a Type whose values are matched case-insensitively against
// symbols. Converted values are the canonical symbol as given here.
func Enum(name string, symbols ...string) Type {
	return Type{kind: KindEnum, name: name, symbols: append([]string(nil), symbols...)}
}

// Nullable marks t as accepting an absent value. Conversion of a present value
// is unchanged; absence is handled by the binder, not the converter.
func Nullable(t Type) Type {
	t.nullable = true
	return t
}

// Kind reports the table entry of t.
func (t Type) Kind() Kind { return t.kind }

// IsNullable reports whether t was built with Nullable.
func (t Type) IsNullable() bool { return t.nullable }

// Symbols returns the enum symbols of t, or nil.
func (t Type) Symbols() []string { return t.symbols }

// Valid reports whether t is an entry of the converter table.
func (t Type) Valid() bool {
	switch t.kind {
	case KindString, KindInt, KindUint, KindBool:
		return true
	case KindEnum:
		return len(t.symbols) > 0
	}
	return false
}

func (t Type) String() string {
	name := t.name
	if name == "" {
		name = "invalid"
	}
	if t.nullable {
		return name + "?"
	}
	return name
}

// Convert converts raw to the Go value of t: string, int64, uint64, bool, or
// the canonical enum symbol.
func (t Type) Convert(raw string) (any, error) {
	// Nullable types convert like their underlying type.
	switch t.kind {
	case KindString:
		return raw, nil
	case KindInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &ConversionError{Reason: FormatMismatch, Value: raw, Type: t.String(), Err: err}
		}
		return v, nil
	case KindUint:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, &ConversionError{Reason: FormatMismatch, Value: raw, Type: t.String(), Err: err}
		}
		return v, nil
	case KindBool:
		return parseBool(raw, t)
	case KindEnum:
		for _, sym := range t.symbols {
			if strings.EqualFold(sym, raw) {
				return sym, nil
			}
		}
		return nil, &ConversionError{Reason: UnknownEnumValue, Value: raw, Type: t.String(), Symbols: t.symbols}
	}
	return nil, ErrUnsupportedType
}

func parseBool(raw string, t Type) (bool, error) {
	switch {
	case strings.EqualFold(raw, "true"):
		return true, nil
	case strings.EqualFold(raw, "false"):
		return false, nil
	}
	switch raw {
	case "1", "t", "T":
		return true, nil
	case "0", "f", "F":
		return false, nil
	}
	return false, &ConversionError{Reason: FormatMismatch, Value: raw, Type: t.String()}
}
