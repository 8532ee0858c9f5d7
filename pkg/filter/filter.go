// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filter selects elements of agent documents.
//
// Every pattern is matched case-insensitively. A pattern written as /expr/ is
// a regular expression, anything else must equal the target.
package filter

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/dlclark/regexp2"
)

// Category is an MTConnect data item category.
type Category string

const (
	Samples   Category = "Samples"
	Events    Category = "Events"
	Condition Category = "Condition"
)

// Categories lists the valid categories.
var Categories = []Category{Samples, Events, Condition}

// Filter narrows a sequence of elements.
type Filter func([]*etree.Element) []*etree.Element

// Matcher is a compiled pattern.
type Matcher struct {
	pattern string
	re      *regexp2.Regexp
}

// Compile parses pattern. It fails only for an invalid /expr/.
func Compile(pattern string) (*Matcher, error) {
	m := &Matcher{pattern: pattern}
	if isRegex(pattern) {
		re, err := regexp2.Compile(pattern[1:len(pattern)-1], regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		m.re = re
	}
	return m, nil
}

func isRegex(pattern string) bool {
	return len(pattern) >= 2 && strings.TrimSpace(pattern) != "" &&
		strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/")
}

// Match reports whether target matches the pattern.
func (m *Matcher) Match(target string) bool {
	if m.re != nil && strings.TrimSpace(target) != "" {
		ok, err := m.re.MatchString(target)
		return err == nil && ok
	}
	return strings.EqualFold(target, m.pattern)
}

// Match compiles pattern and matches target against it. An invalid regular
// expression never matches.
func Match(target, pattern string) bool {
	m, err := Compile(pattern)
	if err != nil {
		return false
	}
	return m.Match(target)
}

func where(m *Matcher, field func(*etree.Element) string) Filter {
	return func(in []*etree.Element) []*etree.Element {
		var out []*etree.Element
		for _, el := range in {
			if m.Match(field(el)) {
				out = append(out, el)
			}
		}
		return out
	}
}

func tag(el *etree.Element) string { return el.Tag }

func attr(key string) func(*etree.Element) string {
	return func(el *etree.Element) string {
		return el.SelectAttrValue(key, "")
	}
}

// ByCategory keeps the descendants of the Samples, Events or Condition
// containers among the input.
func ByCategory(c Category) Filter {
	m := &Matcher{pattern: string(c)}
	return func(in []*etree.Element) []*etree.Element {
		var out []*etree.Element
		for _, el := range in {
			if m.Match(el.Tag) {
				out = append(out, Descendants(el)...)
			}
		}
		return out
	}
}

// ParseCategory returns the category named s, in any case.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

func ByID(pattern string) (Filter, error)   { return byAttr("dataItemId", pattern) }
func ByName(pattern string) (Filter, error) { return byAttr("name", pattern) }

func BySubType(pattern string) (Filter, error) { return byAttr("subType", pattern) }

// ByType matches the element name, which is the data item type in streams
// documents (e.g. Position, Availability).
func ByType(pattern string) (Filter, error) {
	m, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	return where(m, tag), nil
}

func byAttr(key, pattern string) (Filter, error) {
	m, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	return where(m, attr(key)), nil
}

// Generic parses "key=pattern;key=pattern". The key tag matches the element
// name, value matches its text, any other key matches that attribute. All
// terms must match.
func Generic(expr string) (Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return func(in []*etree.Element) []*etree.Element { return in }, nil
	}
	type term struct {
		m     *Matcher
		field func(*etree.Element) string
	}
	var terms []term
	for _, tok := range strings.Split(expr, ";") {
		key, pattern, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, fmt.Errorf("invalid filter: %s", tok)
		}
		m, err := Compile(pattern)
		if err != nil {
			return nil, err
		}
		t := term{m: m}
		switch {
		case strings.EqualFold(key, "tag"):
			t.field = tag
		case strings.EqualFold(key, "value"):
			t.field = Value
		default:
			t.field = attr(key)
		}
		terms = append(terms, t)
	}
	return func(in []*etree.Element) []*etree.Element {
		var out []*etree.Element
	next:
		for _, el := range in {
			for _, t := range terms {
				if !t.m.Match(t.field(el)) {
					continue next
				}
			}
			out = append(out, el)
		}
		return out
	}, nil
}

// Chain applies filters in order to root and all its descendants.
func Chain(root *etree.Element, filters ...Filter) []*etree.Element {
	if root == nil {
		return nil
	}
	els := append([]*etree.Element{root}, Descendants(root)...)
	for _, f := range filters {
		els = f(els)
	}
	return els
}

// Descendants returns every element below el in document order.
func Descendants(el *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, c := range e.ChildElements() {
			out = append(out, c)
			walk(c)
		}
	}
	walk(el)
	return out
}

// Value returns the concatenated text of el and its descendants.
func Value(el *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		for _, t := range e.Child {
			switch t := t.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(el)
	return b.String()
}

// Set is the filter selection of one command invocation. Empty fields are
// ignored.
type Set struct {
	Category Category
	ID       string
	Name     string
	Type     string
	SubType  string
	Expr     string
}

// Filters builds the filters of s in application order. No filters means the
// whole document is output.
func (s Set) Filters() ([]Filter, error) {
	var out []Filter
	if s.Category != "" {
		out = append(out, ByCategory(s.Category))
	}
	for _, b := range []struct {
		pattern string
		build   func(string) (Filter, error)
	}{
		{s.ID, ByID},
		{s.Name, ByName},
		{s.Type, ByType},
		{s.SubType, BySubType},
		{s.Expr, Generic},
	} {
		if strings.TrimSpace(b.pattern) == "" {
			continue
		}
		f, err := b.build(b.pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
