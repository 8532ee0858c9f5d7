// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// AddHelpCommand registers HELP, which lists every command with its
// arguments.
func (r *Registry) AddHelpCommand(w io.Writer) {
	r.MustRegister(Spec{
		Name:        "Help",
		Description: "Displays this help text.",
		Handler: func(Values) error {
			return r.WriteHelp(w)
		},
	})
}

// WriteHelp writes the command listing shown by HELP.
func (r *Registry) WriteHelp(w io.Writer) error {
	fmt.Fprintln(w, "Supported Commands:")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, d := range r.Descriptors() {
		fmt.Fprintf(tw, "%s\t%s\n", strings.ToUpper(d.Name), d.Description)
		if args := argsLine(d); args != "" {
			fmt.Fprintf(tw, "\tArgs: %s\n", args)
		}
	}
	return tw.Flush()
}

func argsLine(d *Descriptor) string {
	var parts []string
	for _, p := range d.Positionals() {
		parts = append(parts, p.Name)
	}
	var named []Param
	for _, p := range d.Params {
		if p.Kind == KindNamed || p.Kind == KindNamedRequired {
			named = append(named, p)
		}
	}
	sort.Slice(named, func(i, j int) bool { return fold(named[i].Key) < fold(named[j].Key) })
	for _, p := range named {
		if p.Kind == KindNamed {
			parts = append(parts, "[-"+p.Key+"]")
		} else {
			parts = append(parts, "-"+p.Key)
		}
	}
	return strings.Join(parts, " ")
}

// AddVersionCommand registers VERSION, which prints "name v.version".
func (r *Registry) AddVersionCommand(w io.Writer, name, version string) {
	r.MustRegister(Spec{
		Name:        "Version",
		Description: "Displays the version.",
		Handler: func(Values) {
			fmt.Fprintf(w, "%s v.%s\n", name, version)
		},
	})
}

// AddExitCommand registers EXIT, which returns ErrExit. Callers stop their
// command loop when they see it.
func (r *Registry) AddExitCommand() {
	r.MustRegister(Spec{
		Name:        "Exit",
		Description: "Exits the application.",
		Handler: func(Values) error {
			return ErrExit
		},
	})
}
