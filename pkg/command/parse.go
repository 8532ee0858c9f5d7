// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"strings"
)

// ParseFirst parses the first command in args and reports how many tokens it
// consumed.
//
// The first token names the command. The next PositionalCount tokens, or as
// many as remain, are its positional arguments. After them, tokens are read
// in pairs "-key value" for as long as the first token of a pair starts with
// '-'. All leading '-' are stripped from the key. Scanning stops silently at
// the first pair whose key does not start with '-', or when a single token is
// left, so callers can parse the next command from args[n:].
//
// ParseFirst returns (nil, 0) for empty args and (nil, 1) when the first
// token is not a registered command.
func (r *Registry) ParseFirst(ctx context.Context, args []string, opts OptionReader) (*Context, int) {
	if len(args) == 0 {
		return nil, 0
	}
	d, ok := r.Lookup(args[0])
	if !ok {
		return nil, 1
	}
	if opts == nil && r.options != nil {
		opts = r.options
	}

	rest := args[1:]
	n := min(d.PositionalCount(), len(rest))
	positional := append([]string(nil), rest[:n]...)
	rest = rest[n:]

	named := make(map[string]string)
	i := 0
	for ; i+1 < len(rest); i += 2 {
		key := rest[i]
		if !strings.HasPrefix(key, "-") {
			break
		}
		// Folded on write so a later spelling of the same key wins.
		named[fold(strings.TrimLeft(key, "-"))] = rest[i+1]
	}

	c := newContext(ctx, args[0], positional, named, opts)
	return c, 1 + n + i
}
