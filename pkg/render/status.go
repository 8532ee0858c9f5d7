// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"github.com/fatih/color"

	"github.com/yeetrun/mt/pkg/filter"
)

var (
	deviceColor = color.New(color.BgBlue, color.FgWhite)

	conditionColors = map[string]*color.Color{
		"Normal":      color.New(color.BgBlack, color.FgGreen),
		"Warning":     color.New(color.BgYellow, color.FgBlack),
		"Fault":       color.New(color.BgRed, color.FgWhite),
		"Unavailable": color.New(color.BgHiBlack, color.FgBlack),
	}
)

// Status writes a summary of a current document: one banner per device,
// padded to width, then each component with its conditions.
func Status(w io.Writer, doc *etree.Document, width int) {
	root := doc.Root()
	if root == nil {
		return
	}
	for _, dev := range byTag(filter.Descendants(root), "DeviceStream") {
		name := label(dev, "name", "uuid")
		deviceColor.Fprint(w, name+strings.Repeat(" ", max(width-len(name), 0)))
		fmt.Fprintln(w)

		for _, comp := range byTag(filter.Descendants(dev), "ComponentStream") {
			fmt.Fprintf(w, "|-%s\n", label(comp, "name", "componentId"))

			conds := byTag(filter.Descendants(comp), "Condition")
			if len(conds) == 0 {
				continue
			}
			for _, cond := range filter.Descendants(conds[0]) {
				fmt.Fprint(w, "  |-")
				text := label(cond, "name", "dataItemId")
				if ts := cond.SelectAttr("timestamp"); ts != nil {
					text += "\t( since " + ts.Value + ")"
				}
				if c, ok := conditionColors[cond.Tag]; ok {
					c.Fprint(w, text)
				} else {
					fmt.Fprint(w, text)
				}
				fmt.Fprintln(w)
			}
		}
		fmt.Fprintln(w)
	}
}

func byTag(els []*etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, el := range els {
		if el.Tag == tag {
			out = append(out, el)
		}
	}
	return out
}

// label returns the first present attribute of keys, or "unknown".
func label(el *etree.Element, keys ...string) string {
	for _, k := range keys {
		if a := el.SelectAttr(k); a != nil {
			return a.Value
		}
	}
	return "unknown"
}
