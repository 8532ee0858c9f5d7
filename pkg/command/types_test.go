// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConvert(t *testing.T) {
	format := Enum("Format", "Xml", "Json", "PrettyJson")
	tests := []struct {
		name string
		typ  Type
		raw  string
		want any
	}{
		{"string", String, "//DataItem", "//DataItem"},
		{"empty string", String, "", ""},
		{"int", Int, "-42", int64(-42)},
		{"uint", Uint, "100", uint64(100)},
		{"bool true", Bool, "true", true},
		{"bool TRUE", Bool, "TRUE", true},
		{"bool False", Bool, "False", false},
		{"bool 1", Bool, "1", true},
		{"bool f", Bool, "f", false},
		{"nullable int", Nullable(Int), "5", int64(5)},
		{"nullable uint", Nullable(Uint), "7", uint64(7)},
		{"enum exact", format, "Json", "Json"},
		{"enum any case", format, "prettyjson", "PrettyJson"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Convert(tt.raw)
			if err != nil {
				t.Fatalf("Convert(%q): %v", tt.raw, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Convert(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestConvertErrors(t *testing.T) {
	format := Enum("Format", "Xml", "Json")
	tests := []struct {
		name   string
		typ    Type
		raw    string
		reason ConversionReason
	}{
		{"bool maybe", Bool, "maybe", FormatMismatch},
		{"int letters", Int, "ten", FormatMismatch},
		{"uint negative", Uint, "-1", FormatMismatch},
		{"uint overflow", Uint, "18446744073709551616", FormatMismatch},
		{"nullable int empty", Nullable(Int), "", FormatMismatch},
		{"enum unknown", format, "Yaml", UnknownEnumValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.typ.Convert(tt.raw)
			var ce *ConversionError
			if !errors.As(err, &ce) {
				t.Fatalf("Convert(%q) error = %v, want *ConversionError", tt.raw, err)
			}
			if ce.Reason != tt.reason {
				t.Fatalf("reason = %v, want %v", ce.Reason, tt.reason)
			}
			if ce.Value != tt.raw {
				t.Fatalf("value = %q, want %q", ce.Value, tt.raw)
			}
		})
	}
}

func TestConvertUnknownEnumListsSymbols(t *testing.T) {
	_, err := Enum("Transport", "http", "ws").Convert("grpc")
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConversionError, got %v", err)
	}
	if diff := cmp.Diff([]string{"http", "ws"}, ce.Symbols); diff != "" {
		t.Fatalf("symbols mismatch (-want +got):\n%s", diff)
	}
	if got, want := err.Error(), `invalid Transport value "grpc" (expected one of http, ws)`; got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestTypeValid(t *testing.T) {
	if (Type{}).Valid() {
		t.Fatal("zero Type must not be valid")
	}
	if Enum("Empty").Valid() {
		t.Fatal("enum without symbols must not be valid")
	}
	if _, err := (Type{}).Convert("x"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("zero Type Convert error = %v, want ErrUnsupportedType", err)
	}
	if got := Nullable(Uint).String(); got != "uint?" {
		t.Fatalf("Nullable(Uint).String() = %q", got)
	}
}
