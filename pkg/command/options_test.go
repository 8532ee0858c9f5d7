// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testFormat string

type testSettings struct {
	Verbose bool
	Format  testFormat
	Agent   string
	Timeout uint64
}

func newTestOptions(t *testing.T, s *testSettings) *Options {
	t.Helper()
	o, err := NewOptions(
		BoolVar(&s.Verbose, "Verbose", "Log requests."),
		EnumVar(&s.Format, "Format", "Output format.", "Xml", "Json"),
		StringVar(&s.Agent, "Agent", "Agent URI."),
		UintVar(&s.Timeout, "Timeout", "Request timeout."),
	)
	if err != nil {
		t.Fatalf("NewOptions: %v", err)
	}
	return o
}

func TestOptionsGetSet(t *testing.T) {
	s := &testSettings{Format: "Xml"}
	o := newTestOptions(t, s)

	for _, kv := range [][2]string{
		{"verbose", "TRUE"},
		{"FORMAT", "json"},
		{"agent", "http://localhost:5000"},
		{"timeout", "30"},
	} {
		if err := o.Set(kv[0], kv[1]); err != nil {
			t.Fatalf("Set(%s, %s): %v", kv[0], kv[1], err)
		}
	}
	want := testSettings{Verbose: true, Format: "Json", Agent: "http://localhost:5000", Timeout: 30}
	if diff := cmp.Diff(want, *s); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}

	v, err := o.Get("format")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != testFormat("Json") {
		t.Fatalf("Get(format) = %#v", v)
	}
}

func TestOptionsSetInvalidKeepsValue(t *testing.T) {
	s := &testSettings{Format: "Xml", Timeout: 10}
	o := newTestOptions(t, s)

	err := o.Set("Format", "Csv")
	var ce *ConversionError
	if !errors.As(err, &ce) || ce.Reason != UnknownEnumValue {
		t.Fatalf("Set(Format, Csv) = %v, want UnknownEnumValue", err)
	}
	if err := o.Set("Timeout", "-5"); err == nil {
		t.Fatal("Set(Timeout, -5) succeeded")
	}
	if s.Format != "Xml" || s.Timeout != 10 {
		t.Fatalf("settings changed after failed Set: %+v", *s)
	}
}

func TestOptionsUnknown(t *testing.T) {
	o := newTestOptions(t, &testSettings{})
	if _, err := o.Get("color"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("Get(color) = %v", err)
	}
	if err := o.Set("color", "on"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("Set(color) = %v", err)
	}
}

func TestOptionsAllSorted(t *testing.T) {
	o := newTestOptions(t, &testSettings{})
	var names []string
	for _, s := range o.All() {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"Agent", "Format", "Timeout", "Verbose"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestOptionsDuplicate(t *testing.T) {
	var a, b bool
	_, err := NewOptions(BoolVar(&a, "Verbose", ""), BoolVar(&b, "VERBOSE", ""))
	if !errors.Is(err, ErrDuplicateNamed) {
		t.Fatalf("NewOptions duplicate = %v", err)
	}
	_, err = NewOptions(OptionSpec{Name: "Bare", Type: String})
	if !errors.Is(err, ErrConflictingBinding) {
		t.Fatalf("NewOptions unbound = %v", err)
	}
}
