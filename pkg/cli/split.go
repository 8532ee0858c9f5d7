// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"errors"
	"strings"
)

var errUnterminatedQuote = errors.New("unterminated quote")

// SplitLine splits an interactive input line into tokens the way a POSIX
// shell would: whitespace separates tokens, single quotes are literal, and
// inside double quotes a backslash escapes only " and \. Outside quotes a
// backslash escapes the next character.
func SplitLine(line string) ([]string, error) {
	var (
		tokens     []string
		cur        strings.Builder
		inSingle   bool
		inDouble   bool
		hasContent bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case inSingle:
			if ch == '\'' {
				inSingle = false
			} else {
				cur.WriteRune(ch)
			}
		case inDouble:
			switch {
			case ch == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\'):
				i++
				cur.WriteRune(runes[i])
			case ch == '"':
				inDouble = false
			default:
				cur.WriteRune(ch)
			}
		case ch == '\\':
			if i+1 < len(runes) {
				i++
			}
			cur.WriteRune(runes[i])
			hasContent = true
		case ch == '\'':
			inSingle, hasContent = true, true
		case ch == '"':
			inDouble, hasContent = true, true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			if hasContent {
				tokens = append(tokens, cur.String())
				cur.Reset()
				hasContent = false
			}
		default:
			cur.WriteRune(ch)
			hasContent = true
		}
	}
	if inSingle || inDouble {
		return nil, errUnterminatedQuote
	}
	if hasContent {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}
