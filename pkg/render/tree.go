// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/beevik/etree"
	"gopkg.in/yaml.v3"
)

// object is a JSON object that keeps its keys in document order.
type object struct {
	keys []string
	vals map[string]any
}

func (o *object) set(k string, v any) {
	if o.vals == nil {
		o.vals = make(map[string]any)
	}
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

// MarshalJSON writes the keys in insertion order. encoding/json sorts map
// keys, which would lose the attribute and child order of the element.
func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// wrap returns {"<tag>": value(el)}.
func wrap(el *etree.Element) *object {
	o := &object{}
	o.set(el.FullTag(), value(el))
	return o
}

// value converts el using the usual XML to JSON mapping: attributes become
// "@name" keys, text beside attributes or children becomes "#text", repeated
// children become arrays, and an element with only text is a string.
func value(el *etree.Element) any {
	text := directText(el)
	children := el.ChildElements()
	if len(el.Attr) == 0 && len(children) == 0 {
		if text == "" {
			return nil
		}
		return text
	}
	o := &object{}
	for _, a := range el.Attr {
		o.set("@"+a.FullKey(), a.Value)
	}
	if strings.TrimSpace(text) != "" {
		o.set("#text", text)
	}
	var order []string
	groups := make(map[string][]any)
	for _, c := range children {
		tag := c.FullTag()
		if _, ok := groups[tag]; !ok {
			order = append(order, tag)
		}
		groups[tag] = append(groups[tag], value(c))
	}
	for _, tag := range order {
		if g := groups[tag]; len(g) == 1 {
			o.set(tag, g[0])
		} else {
			o.set(tag, g)
		}
	}
	return o
}

func directText(el *etree.Element) string {
	var b strings.Builder
	for _, t := range el.Child {
		if cd, ok := t.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	if len(el.ChildElements()) > 0 {
		return strings.TrimSpace(b.String())
	}
	return b.String()
}

func toJSON(el *etree.Element, pretty bool) ([]byte, error) {
	b, err := json.Marshal(wrap(el))
	if err != nil || !pretty {
		return b, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toYAML(v any) *yaml.Node {
	switch v := v.(type) {
	case *object:
		n := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range v.keys {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				toYAML(v.vals[k]))
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, e := range v {
			n.Content = append(n.Content, toYAML(e))
		}
		return n
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}
