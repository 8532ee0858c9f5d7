// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"fmt"
	"sort"

	"tailscale.com/util/mak"
)

// OptionSpec declares one option bound to a field of a caller-owned struct.
type OptionSpec struct {
	Name        string
	Description string
	Type        Type

	get func() any
	set func(v any)
}

// BoolVar binds a bool field.
func BoolVar(p *bool, name, desc string) OptionSpec {
	return OptionSpec{
		Name: name, Description: desc, Type: Bool,
		get: func() any { return *p },
		set: func(v any) { *p = v.(bool) },
	}
}

// StringVar binds a string field.
func StringVar(p *string, name, desc string) OptionSpec {
	return OptionSpec{
		Name: name, Description: desc, Type: String,
		get: func() any { return *p },
		set: func(v any) { *p = v.(string) },
	}
}

// UintVar binds a uint64 field.
func UintVar(p *uint64, name, desc string) OptionSpec {
	return OptionSpec{
		Name: name, Description: desc, Type: Uint,
		get: func() any { return *p },
		set: func(v any) { *p = v.(uint64) },
	}
}

// EnumVar binds a string-kinded field restricted to symbols.
func EnumVar[T ~string](p *T, name, desc string, symbols ...T) OptionSpec {
	syms := make([]string, len(symbols))
	for i, s := range symbols {
		syms[i] = string(s)
	}
	return OptionSpec{
		Name: name, Description: desc, Type: Enum(name, syms...),
		get: func() any { return *p },
		set: func(v any) { *p = T(v.(string)) },
	}
}

// Value returns the current value of the option.
func (o OptionSpec) Value() any {
	return o.get()
}

// Options is the registry of named options. Lookup is case-insensitive.
// Options mediates every read and write of the backing struct.
type Options struct {
	specs map[string]OptionSpec
}

// NewOptions registers specs. It fails on duplicate names or unsupported
// types.
func NewOptions(specs ...OptionSpec) (*Options, error) {
	o := &Options{}
	for _, s := range specs {
		if err := o.Register(s); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Register adds one option.
func (o *Options) Register(s OptionSpec) error {
	if !s.Type.Valid() {
		return &RegistrationError{Command: "option " + s.Name, Err: ErrUnsupportedType}
	}
	if s.get == nil || s.set == nil {
		return &RegistrationError{Command: "option " + s.Name, Err: fmt.Errorf("%w: option has no backing field", ErrConflictingBinding)}
	}
	k := fold(s.Name)
	if _, ok := o.specs[k]; ok {
		return &RegistrationError{Command: "option " + s.Name, Err: ErrDuplicateNamed}
	}
	mak.Set(&o.specs, k, s)
	return nil
}

// Lookup returns the option registered under name.
func (o *Options) Lookup(name string) (OptionSpec, bool) {
	if o == nil {
		return OptionSpec{}, false
	}
	s, ok := o.specs[fold(name)]
	return s, ok
}

// Get returns the current value of the named option.
func (o *Options) Get(name string) (any, error) {
	s, ok := o.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}
	return s.get(), nil
}

// Set converts raw to the option's type and stores it. On failure the option
// keeps its previous value.
func (o *Options) Set(name, raw string) error {
	s, ok := o.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, name)
	}
	v, err := s.Type.Convert(raw)
	if err != nil {
		return fmt.Errorf("option %s: %w", s.Name, err)
	}
	s.set(v)
	return nil
}

// All returns every option sorted by name.
func (o *Options) All() []OptionSpec {
	if o == nil {
		return nil
	}
	out := make([]OptionSpec, 0, len(o.specs))
	for _, s := range o.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return fold(out[i].Name) < fold(out[j].Name) })
	return out
}
