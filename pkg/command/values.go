// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import "context"

// Values holds the bound parameters of one invocation, keyed by parameter
// name.
type Values struct {
	ctx    *Context
	values map[string]any
}

// Raw returns the bound value of name. It returns Missing for an optional
// named parameter that was not supplied and nil for an unknown name.
func (v Values) Raw(name string) any {
	return v.values[name]
}

// Has reports whether name was bound to a supplied value.
func (v Values) Has(name string) bool {
	x, ok := v.values[name]
	return ok && x != Missing
}

// Get returns the value of name as T. It reports false when the parameter was
// not supplied or does not hold a T.
func Get[T any](v Values, name string) (T, bool) {
	t, ok := v.values[name].(T)
	return t, ok
}

// String returns the string value of name, or "" when absent.
func (v Values) String(name string) string {
	s, _ := Get[string](v, name)
	return s
}

// Int returns the int64 value of name, or def when absent.
func (v Values) Int(name string, def int64) int64 {
	if n, ok := Get[int64](v, name); ok {
		return n
	}
	return def
}

// Uint returns the uint64 value of name, or def when absent.
func (v Values) Uint(name string, def uint64) uint64 {
	if n, ok := Get[uint64](v, name); ok {
		return n
	}
	return def
}

// Bool returns the bool value of name, or def when absent.
func (v Values) Bool(name string, def bool) bool {
	if b, ok := Get[bool](v, name); ok {
		return b
	}
	return def
}

// Invocation returns the Context the values were bound from.
func (v Values) Invocation() *Context {
	return v.ctx
}

// Context returns the cancellation context of the invocation.
func (v Values) Context() context.Context {
	if v.ctx == nil {
		return context.Background()
	}
	return v.ctx.Context()
}

// NewValues builds Values directly, for calling command functions outside
// a Registry.
func NewValues(c *Context, values map[string]any) Values {
	m := make(map[string]any, len(values))
	for k, x := range values {
		m[k] = x
	}
	return Values{ctx: c, values: m}
}
