// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import "fmt"

// ParamKind is the binding mode of a command parameter.
type ParamKind int

const (
	KindContext ParamKind = iota + 1
	KindPositional
	KindNamed
	KindNamedRequired
)

func (k ParamKind) String() string {
	switch k {
	case KindContext:
		return "context"
	case KindPositional:
		return "positional"
	case KindNamed:
		return "named"
	case KindNamedRequired:
		return "named-required"
	}
	return "invalid"
}

// Param describes how one command parameter is bound from a Context.
type Param struct {
	Kind ParamKind

	// Name identifies the parameter in Values and in help and error output.
	Name string

	// Index is the position of a KindPositional parameter.
	Index int

	// Key is the flag name of a KindNamed or KindNamedRequired parameter,
	// without the leading marker.
	Key string

	Type Type

	// Description is shown by the help command.
	Description string
}

// Ctx binds the invocation Context itself.
func Ctx() Param {
	return Param{Kind: KindContext, Name: "ctx"}
}

// Pos binds the positional token at index.
func Pos(index int, name string, t Type) Param {
	return Param{Kind: KindPositional, Name: name, Index: index, Type: t}
}

// Named binds the optional named argument -key. When the argument is absent
// the parameter resolves to Missing.
func Named(key string, t Type) Param {
	return Param{Kind: KindNamed, Name: key, Key: key, Type: t}
}

// Required binds the named argument -key and fails when it is absent.
func Required(key string, t Type) Param {
	return Param{Kind: KindNamedRequired, Name: key, Key: key, Type: t}
}

// Bare is a parameter with no explicit binding. It is a required named
// argument keyed by its own name.
func Bare(name string, t Type) Param {
	return Required(name, t)
}

// As renames the parameter as seen by Values, keeping its binding.
func (p Param) As(name string) Param {
	p.Name = name
	return p
}

// Describe sets the help text of the parameter.
func (p Param) Describe(desc string) Param {
	p.Description = desc
	return p
}

type missing struct{}

func (missing) String() string { return "<not supplied>" }

// Missing is the value of an optional named parameter whose argument was not
// supplied. It is distinct from any default so that commands apply their own.
var Missing any = missing{}

// resolver produces the value of one parameter for an invocation.
type resolver func(c *Context) (any, error)

func (p Param) validate() error {
	switch p.Kind {
	case KindContext:
		if p.Type.Kind() != KindInvalid {
			return fmt.Errorf("%w: context parameter cannot have type %s", ErrConflictingBinding, p.Type)
		}
		return nil
	case KindPositional:
		if p.Index < 0 {
			return fmt.Errorf("%w: negative positional index %d", ErrConflictingBinding, p.Index)
		}
	case KindNamed, KindNamedRequired:
		if p.Key == "" {
			return fmt.Errorf("%w: empty named key", ErrConflictingBinding)
		}
	default:
		return fmt.Errorf("%w: unknown binding kind %d", ErrConflictingBinding, int(p.Kind))
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, p.Type)
	}
	return nil
}

// resolver builds the resolver of p. p must be valid.
func (p Param) resolver(command string) resolver {
	switch p.Kind {
	case KindContext:
		return func(c *Context) (any, error) {
			return c, nil
		}
	case KindPositional:
		index := p.Index
		return func(c *Context) (any, error) {
			if index >= len(c.Positional) {
				return nil, &BindError{Command: command, Reason: MissingPositional, Param: p.Name, Index: index}
			}
			return p.convert(command, c.Positional[index])
		}
	case KindNamed:
		return func(c *Context) (any, error) {
			raw, ok := c.Named(p.Key)
			if !ok {
				return Missing, nil
			}
			return p.convert(command, raw)
		}
	default:
		return func(c *Context) (any, error) {
			raw, ok := c.Named(p.Key)
			if !ok {
				return nil, &BindError{Command: command, Reason: MissingNamed, Param: p.Name, Key: p.Key}
			}
			return p.convert(command, raw)
		}
	}
}

func (p Param) convert(command, raw string) (any, error) {
	v, err := p.Type.Convert(raw)
	if err != nil {
		return nil, &BindError{Command: command, Reason: InvalidValue, Param: p.Name, Index: p.Index, Key: p.Key, Err: err}
	}
	return v, nil
}

// usage returns the help form of p, e.g. "<uri>" or "[-path string]".
func (p Param) usage() string {
	switch p.Kind {
	case KindPositional:
		return "<" + p.Name + ">"
	case KindNamed:
		return "[-" + p.Key + " " + typeHint(p.Type) + "]"
	case KindNamedRequired:
		return "-" + p.Key + " " + typeHint(p.Type)
	}
	return ""
}

func typeHint(t Type) string {
	if t.Kind() == KindEnum {
		hint := ""
		for i, s := range t.Symbols() {
			if i > 0 {
				hint += "|"
			}
			hint += s
		}
		return hint
	}
	return t.name
}
