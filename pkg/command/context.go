// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"context"

	"golang.org/x/text/cases"
)

// fold returns the case-insensitive lookup key for s. A Caser is stateful, so
// one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// OptionReader is a read-only view of application options.
type OptionReader interface {
	Get(name string) (any, error)
}

// Context is one parsed invocation. It is created by ParseFirst and consumed
// once by Run.
type Context struct {
	// Name is the command token as it was typed.
	Name string

	// Positional holds the raw positional tokens. It may be shorter than the
	// command's positional count; binding reports the missing index.
	Positional []string

	// Options is the option state visible to the command.
	Options OptionReader

	named map[string]string
	ctx   context.Context
}

// NewContext builds a Context directly. Named keys are matched
// case-insensitively; keys that fold to the same name must not both be
// present, since map order would decide between them.
func NewContext(ctx context.Context, name string, positional []string, named map[string]string, opts OptionReader) *Context {
	folded := make(map[string]string, len(named))
	for k, v := range named {
		folded[fold(k)] = v
	}
	return newContext(ctx, name, positional, folded, opts)
}

// newContext takes ownership of named, whose keys are already folded.
func newContext(ctx context.Context, name string, positional []string, named map[string]string, opts OptionReader) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		Name:       name,
		Positional: positional,
		Options:    opts,
		named:      named,
		ctx:        ctx,
	}
}

// Context returns the cancellation context of the invocation.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Named returns the raw value of the named argument key.
func (c *Context) Named(key string) (string, bool) {
	v, ok := c.named[fold(key)]
	return v, ok
}

// NamedArgs returns a copy of the named arguments, keyed by folded name.
func (c *Context) NamedArgs() map[string]string {
	out := make(map[string]string, len(c.named))
	for k, v := range c.named {
		out[k] = v
	}
	return out
}
