// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const testBoundary = "a8d1f7c3e2"

const contentType = "multipart/x-mixed-replace;boundary=" + testBoundary

func streamsDoc(seq int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<MTConnectStreams><Header instanceId="1" nextSequence="%d"/><Streams/></MTConnectStreams>`, seq)
}

// writeSection writes one agent-style section with its own headers.
func writeSection(t *testing.T, mw *multipart.Writer, body string) {
	t.Helper()
	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", "text/xml")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		t.Fatalf("write part: %v", err)
	}
}

func multipartBody(t *testing.T, bodies ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(testBoundary); err != nil {
		t.Fatalf("set boundary: %v", err)
	}
	for _, b := range bodies {
		writeSection(t, mw, b)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func nextSequences(t *testing.T, d *Decoder, ctx context.Context) []string {
	t.Helper()
	var got []string
	for d.Next(ctx) {
		got = append(got, d.Document().FindElement("//Header").SelectAttrValue("nextSequence", ""))
	}
	return got
}

func TestDecoderThreeSections(t *testing.T) {
	body := &trackingBody{Reader: multipartBody(t, streamsDoc(10), streamsDoc(20), streamsDoc(30))}
	d, err := NewDecoder(body, contentType)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	got := nextSequences(t, d, context.Background())
	if diff := cmp.Diff([]string{"10", "20", "30"}, got); diff != "" {
		t.Fatalf("documents mismatch (-want +got):\n%s", diff)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if d.Cancelled() {
		t.Fatal("Cancelled after clean end")
	}
	if !body.closed {
		t.Fatal("body not closed at end of stream")
	}
	if d.Next(context.Background()) {
		t.Fatal("Next returned true after end of stream")
	}
}

func TestDecoderEmpty(t *testing.T) {
	for name, raw := range map[string]string{
		"no bytes":           "",
		"closing delimiter":  "--" + testBoundary + "--\r\n",
		"preamble and close": "ignored preamble\r\n--" + testBoundary + "--",
	} {
		t.Run(name, func(t *testing.T) {
			d, err := NewDecoder(io.NopCloser(strings.NewReader(raw)), contentType)
			if err != nil {
				t.Fatalf("NewDecoder: %v", err)
			}
			if d.Next(context.Background()) {
				t.Fatal("Next returned true for empty stream")
			}
			if err := d.Err(); err != nil {
				t.Fatalf("Err: %v", err)
			}
		})
	}
}

func TestDecoderConnectionClosedBetweenSections(t *testing.T) {
	// The agent never sends a closing delimiter; the connection just ends
	// after a section's trailing boundary.
	raw := multipartBody(t, streamsDoc(1), streamsDoc(2)).String()
	raw = strings.TrimSuffix(raw, "--\r\n") + "\r\n"
	d, err := NewDecoder(io.NopCloser(strings.NewReader(raw)), contentType)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	got := nextSequences(t, d, context.Background())
	if diff := cmp.Diff([]string{"1", "2"}, got); diff != "" {
		t.Fatalf("documents mismatch (-want +got):\n%s", diff)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
}

func TestDecoderTruncatedSection(t *testing.T) {
	raw := multipartBody(t, streamsDoc(1), streamsDoc(2)).String()
	// Cut the stream in the middle of the second document.
	cut := strings.LastIndex(raw, "<Header")
	body := &trackingBody{Reader: strings.NewReader(raw[:cut+4])}
	d, err := NewDecoder(body, contentType)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	got := nextSequences(t, d, context.Background())
	if diff := cmp.Diff([]string{"1"}, got); diff != "" {
		t.Fatalf("documents mismatch (-want +got):\n%s", diff)
	}
	var pe *ProtocolError
	if !errors.As(d.Err(), &pe) {
		t.Fatalf("Err = %v, want *ProtocolError", d.Err())
	}
	if pe.Reason != MalformedSection || pe.Section != 2 {
		t.Fatalf("protocol error = %+v", pe)
	}
	if !errors.Is(d.Err(), io.ErrUnexpectedEOF) {
		t.Fatalf("Err = %v, want io.ErrUnexpectedEOF", d.Err())
	}
	if !body.closed {
		t.Fatal("body not closed after fatal error")
	}
}

func TestDecoderTruncatedHeaders(t *testing.T) {
	first := "--" + testBoundary + "\r\n\r\n" + streamsDoc(1) + "\r\n"
	tests := map[string]string{
		"mid line":        first + "--" + testBoundary + "\r\nContent-Type: te",
		"before blank":    first + "--" + testBoundary + "\r\nContent-Type: text/xml\r\n",
		"after delimiter": first + "--" + testBoundary + "\r\nC",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			body := &trackingBody{Reader: strings.NewReader(raw)}
			d, err := NewDecoder(body, contentType)
			if err != nil {
				t.Fatalf("NewDecoder: %v", err)
			}
			got := nextSequences(t, d, context.Background())
			if diff := cmp.Diff([]string{"1"}, got); diff != "" {
				t.Fatalf("documents mismatch (-want +got):\n%s", diff)
			}
			var pe *ProtocolError
			if !errors.As(d.Err(), &pe) || pe.Reason != MalformedSection || pe.Section != 2 {
				t.Fatalf("Err = %v, want malformed section 2", d.Err())
			}
			if !errors.Is(d.Err(), io.ErrUnexpectedEOF) {
				t.Fatalf("Err = %v, want io.ErrUnexpectedEOF", d.Err())
			}
			if !body.closed {
				t.Fatal("body not closed after fatal error")
			}
		})
	}
}

func TestDecoderMalformedDocument(t *testing.T) {
	tests := map[string]string{
		"syntax":  "<MTConnectStreams><Header/><</MTConnectStreams>",
		"no root": "just text",
	}
	for name, section := range tests {
		t.Run(name, func(t *testing.T) {
			body := multipartBody(t, streamsDoc(1), section, streamsDoc(3))
			d, err := NewDecoder(io.NopCloser(body), contentType)
			if err != nil {
				t.Fatalf("NewDecoder: %v", err)
			}
			got := nextSequences(t, d, context.Background())
			if diff := cmp.Diff([]string{"1"}, got); diff != "" {
				t.Fatalf("documents mismatch (-want +got):\n%s", diff)
			}
			var pe *ProtocolError
			if !errors.As(d.Err(), &pe) || pe.Reason != MalformedSection || pe.Section != 2 {
				t.Fatalf("Err = %v, want malformed section 2", d.Err())
			}
		})
	}
}

func TestDecoderSectionTooLarge(t *testing.T) {
	body := multipartBody(t, streamsDoc(1))
	d, err := NewDecoder(io.NopCloser(body), contentType, WithMaxSectionSize(16))
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if d.Next(context.Background()) {
		t.Fatal("Next accepted an oversized section")
	}
	if !errors.Is(d.Err(), ErrSectionTooLarge) {
		t.Fatalf("Err = %v, want ErrSectionTooLarge", d.Err())
	}
}

func TestDecoderMissingBoundary(t *testing.T) {
	for _, ct := range []string{
		"multipart/x-mixed-replace",
		"text/xml",
		"",
		"multipart/x-mixed-replace; boundary=",
	} {
		t.Run(ct, func(t *testing.T) {
			_, err := NewDecoder(io.NopCloser(strings.NewReader("")), ct)
			var pe *ProtocolError
			if !errors.As(err, &pe) || pe.Reason != MissingBoundary {
				t.Fatalf("NewDecoder(%q) = %v, want MissingBoundary", ct, err)
			}
		})
	}
}

func TestDecoderCancelBetweenSections(t *testing.T) {
	body := &trackingBody{Reader: multipartBody(t, streamsDoc(1), streamsDoc(2), streamsDoc(3))}
	d, err := NewDecoder(body, contentType)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var docs []string
	for d.Next(ctx) {
		docs = append(docs, d.Document().FindElement("//Header").SelectAttrValue("nextSequence", ""))
		if len(docs) == 2 {
			cancel()
		}
	}
	if diff := cmp.Diff([]string{"1", "2"}, docs); diff != "" {
		t.Fatalf("documents mismatch (-want +got):\n%s", diff)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err after cancel: %v", err)
	}
	if !d.Cancelled() {
		t.Fatal("Cancelled = false")
	}
	if !body.closed {
		t.Fatal("body not released after cancel")
	}
}

func TestDecoderCancelWhileWaiting(t *testing.T) {
	// Two sections followed by the delimiter of a third that never arrives,
	// like an agent waiting for new data.
	raw := multipartBody(t, streamsDoc(1), streamsDoc(2)).String()
	raw = strings.TrimSuffix(raw, "--\r\n") + "\r\n"

	pr, pw := io.Pipe()
	defer pw.Close()
	go func() {
		_, _ = io.WriteString(pw, raw)
	}()

	d, err := NewDecoder(pr, contentType)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n int
	for d.Next(ctx) {
		n++
		if n == 2 {
			time.AfterFunc(20*time.Millisecond, cancel)
		}
	}
	if n != 2 {
		t.Fatalf("documents = %d, want 2", n)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err after cancel: %v", err)
	}
	if !d.Cancelled() {
		t.Fatal("Cancelled = false")
	}
}

func TestDecoderAll(t *testing.T) {
	body := &trackingBody{Reader: multipartBody(t, streamsDoc(1), streamsDoc(2), streamsDoc(3))}
	d, err := NewDecoder(body, contentType)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	var n int
	for doc := range d.All(context.Background()) {
		if doc.Root().Tag != "MTConnectStreams" {
			t.Fatalf("root = %s", doc.Root().Tag)
		}
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("documents = %d, want 2", n)
	}
	if !body.closed {
		t.Fatal("body not closed after break")
	}
	if d.Next(context.Background()) {
		t.Fatal("decoder restarted after break")
	}
}

func TestDecoderClose(t *testing.T) {
	d, err := NewDecoder(io.NopCloser(multipartBody(t, streamsDoc(1))), contentType)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.Next(context.Background()) {
		t.Fatal("Next returned true after Close")
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err after Close: %v", err)
	}
}
