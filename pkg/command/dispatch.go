// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import "fmt"

// Run binds the parameters of the command named by c and invokes it. A nil
// context is a no-op. Errors returned by the command are returned unchanged.
func (r *Registry) Run(c *Context) error {
	if c == nil {
		return nil
	}
	d, ok := r.Lookup(c.Name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, c.Name)
	}
	values := make(map[string]any, len(d.Params))
	for i, p := range d.Params {
		v, err := d.resolvers[i](c)
		if err != nil {
			return err
		}
		values[p.Name] = v
	}
	return d.runner(c, Values{ctx: c, values: values})
}
