// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package command turns plain functions into commands with typed arguments.
//
// A command is declared with a Spec listing its parameters in order. Each
// parameter is bound from the invocation Context as the context itself, a
// positional token, or a "-key value" named argument:
//
//	r := command.NewRegistry(opts)
//	r.MustRegister(command.Spec{
//		Name:   "Sample",
//		Params: []command.Param{command.Named("path", command.String)},
//		Handler: func(ctx context.Context, v command.Values) error {
//			return sample(ctx, v.String("path"))
//		},
//	})
//
//	c, n := r.ParseFirst(ctx, args, nil)
//	err := r.Run(c)
//
// Parameter types come from a fixed converter table and are checked when the
// command is registered.
package command

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"tailscale.com/util/mak"
	"tailscale.com/util/set"
)

// Spec declares one command.
type Spec struct {
	// Name is the command name. If empty it is derived from the handler's
	// function name.
	Name        string
	Description string
	Params      []Param

	// Handler is one of
	//
	//	func(Values)
	//	func(Values) error
	//	func(context.Context, Values) error
	Handler any
}

// Provider exposes a set of commands, typically as method values of one
// instance.
type Provider interface {
	Commands() []Spec
}

// Descriptor is a registered command. It is immutable.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param

	resolvers []resolver
	runner    func(*Context, Values) error
}

// PositionalCount returns the number of positional parameters.
func (d *Descriptor) PositionalCount() int {
	n := 0
	for _, p := range d.Params {
		if p.Kind == KindPositional {
			n++
		}
	}
	return n
}

// Positionals returns the positional parameters ordered by index.
func (d *Descriptor) Positionals() []Param {
	var out []Param
	for _, p := range d.Params {
		if p.Kind == KindPositional {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// NamedParams returns the named parameters keyed by folded key.
func (d *Descriptor) NamedParams() map[string]Param {
	var out map[string]Param
	for _, p := range d.Params {
		if p.Kind == KindNamed || p.Kind == KindNamedRequired {
			mak.Set(&out, fold(p.Key), p)
		}
	}
	return out
}

// Usage returns a one-line synopsis such as "CURRENT [-path string]".
func (d *Descriptor) Usage() string {
	parts := []string{strings.ToUpper(d.Name)}
	for _, p := range d.Positionals() {
		parts = append(parts, p.usage())
	}
	for _, p := range d.Params {
		if p.Kind == KindNamed || p.Kind == KindNamedRequired {
			parts = append(parts, p.usage())
		}
	}
	return strings.Join(parts, " ")
}

// Registry maps case-insensitive command names to descriptors. It is built
// once at startup and read-only afterwards.
type Registry struct {
	commands map[string]*Descriptor
	options  *Options
}

// NewRegistry returns an empty registry. opts may be nil.
func NewRegistry(opts *Options) *Registry {
	return &Registry{options: opts}
}

// Options returns the option registry commands see, or nil.
func (r *Registry) Options() *Options {
	return r.options
}

// Register adds one command. A later registration with the same
// case-insensitive name replaces an earlier one.
func (r *Registry) Register(s Spec) error {
	name := s.Name
	if name == "" {
		name = handlerName(s.Handler)
	}
	if name == "" {
		return &RegistrationError{Command: "<unnamed>", Err: ErrInvalidCommandSignature}
	}
	runner, err := normalize(s.Handler)
	if err != nil {
		return &RegistrationError{Command: name, Err: err}
	}

	d := &Descriptor{
		Name:        name,
		Description: s.Description,
		Params:      append([]Param(nil), s.Params...),
		runner:      runner,
	}
	indices := make(set.Set[int])
	keys := make(set.Set[string])
	names := make(set.Set[string])
	for _, p := range d.Params {
		if err := p.validate(); err != nil {
			return &RegistrationError{Command: name, Param: p.Name, Err: err}
		}
		if names.Contains(p.Name) {
			return &RegistrationError{Command: name, Param: p.Name, Err: fmt.Errorf("%w: parameter name reused", ErrConflictingBinding)}
		}
		names.Add(p.Name)
		switch p.Kind {
		case KindPositional:
			if indices.Contains(p.Index) {
				return &RegistrationError{Command: name, Param: p.Name, Err: fmt.Errorf("%w: %d", ErrDuplicatePositional, p.Index)}
			}
			indices.Add(p.Index)
		case KindNamed, KindNamedRequired:
			k := fold(p.Key)
			if keys.Contains(k) {
				return &RegistrationError{Command: name, Param: p.Name, Err: fmt.Errorf("%w: -%s", ErrDuplicateNamed, p.Key)}
			}
			keys.Add(k)
		}
		d.resolvers = append(d.resolvers, p.resolver(name))
	}
	mak.Set(&r.commands, fold(name), d)
	return nil
}

// RegisterAll registers every command of p. The first failure aborts.
func (r *Registry) RegisterAll(p Provider) error {
	for _, s := range p.Commands() {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(s Spec) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered under name, matched
// case-insensitively.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.commands[fold(name)]
	return d, ok
}

// Descriptors returns all commands sorted by name.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.commands))
	for _, d := range r.commands {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return fold(out[i].Name) < fold(out[j].Name)
	})
	return out
}

// normalize adapts a handler to the single blocking runner shape.
func normalize(h any) (func(*Context, Values) error, error) {
	switch fn := h.(type) {
	case func(Values):
		return func(_ *Context, v Values) error {
			fn(v)
			return nil
		}, nil
	case func(Values) error:
		return func(_ *Context, v Values) error {
			return fn(v)
		}, nil
	case func(context.Context, Values) error:
		return func(c *Context, v Values) error {
			return fn(c.Context(), v)
		}, nil
	case nil:
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidCommandSignature)
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidCommandSignature, h)
}

// handlerName derives a command name from a function or method value, e.g.
// "github.com/x/cli.(*Cli).Current-fm" becomes "Current".
func handlerName(h any) string {
	if h == nil {
		return ""
	}
	v := reflect.ValueOf(h)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return ""
	}
	name := fn.Name()
	name = strings.TrimSuffix(name, "-fm")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	// Closures are named func1, func2, ...
	if strings.HasPrefix(name, "func") && strings.Trim(name[4:], "0123456789") == "" {
		return ""
	}
	return name
}
