// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream decodes multipart/x-mixed-replace responses into a sequence
// of XML documents, one per section.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"mime"
	"mime/multipart"
	"sync"
	"sync/atomic"

	"github.com/beevik/etree"
)

// DefaultMaxSectionSize is the largest section body read into memory.
const DefaultMaxSectionSize = 64 << 20

// ErrSectionTooLarge is wrapped by a ProtocolError when a section exceeds the
// configured size limit.
var ErrSectionTooLarge = errors.New("section exceeds size limit")

// Reason classifies a ProtocolError.
type Reason int

const (
	MissingBoundary Reason = iota + 1
	MalformedSection
)

func (r Reason) String() string {
	switch r {
	case MissingBoundary:
		return "missing boundary"
	case MalformedSection:
		return "malformed section"
	}
	return "unknown"
}

// ProtocolError reports a response that does not follow the multipart
// streaming contract. It ends the stream.
type ProtocolError struct {
	Reason  Reason
	Section int // 1-based, for MalformedSection
	Err     error
}

func (e *ProtocolError) Error() string {
	switch e.Reason {
	case MalformedSection:
		return fmt.Sprintf("stream: malformed section %d: %v", e.Section, e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("stream: %s: %v", e.Reason, e.Err)
		}
		return "stream: " + e.Reason.String()
	}
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxSectionSize limits the size of one section body. n <= 0 selects
// DefaultMaxSectionSize.
func WithMaxSectionSize(n int64) Option {
	return func(d *Decoder) {
		if n <= 0 {
			n = DefaultMaxSectionSize
		}
		d.maxSize = n
	}
}

// Decoder reads documents from a multipart body. It is not restartable and
// not safe for concurrent use; Close may be called from any goroutine.
//
//	for dec.Next(ctx) {
//		render(dec.Document())
//	}
//	if err := dec.Err(); err != nil {
//		return err
//	}
type Decoder struct {
	body     io.ReadCloser
	tail     *tailReader
	mr       *multipart.Reader
	boundary string
	maxSize  int64

	doc       *etree.Document
	err       error
	sections  int
	exhausted bool
	cancelled bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewDecoder returns a Decoder reading body. contentType is the response's
// Content-Type header and must carry a boundary parameter. On error the body
// is left open.
func NewDecoder(body io.ReadCloser, contentType string, opts ...Option) (*Decoder, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, &ProtocolError{Reason: MissingBoundary, Err: err}
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, &ProtocolError{Reason: MissingBoundary}
	}
	tail := &tailReader{r: body, n: 2*len(boundary) + 16}
	d := &Decoder{
		body:     body,
		tail:     tail,
		mr:       multipart.NewReader(tail, boundary),
		boundary: boundary,
		maxSize:  DefaultMaxSectionSize,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Boundary returns the section delimiter token.
func (d *Decoder) Boundary() string {
	return d.boundary
}

// Next reads and parses the next section. It returns false at the end of the
// stream, on error, or when ctx is done; Err tells them apart. ctx is checked
// before each section, and cancelling it while a section is being read closes
// the body.
func (d *Decoder) Next(ctx context.Context) bool {
	if d.exhausted {
		return false
	}
	if d.closed.Load() {
		d.finish(nil)
		return false
	}
	if ctx.Err() != nil {
		d.cancel()
		return false
	}

	stop := context.AfterFunc(ctx, func() { d.Close() })
	defer stop()

	part, err := d.mr.NextPart()
	if err != nil {
		switch {
		case ctx.Err() != nil:
			d.cancel()
		case d.closed.Load(), d.cleanEnd(err):
			d.finish(nil)
		default:
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			d.finish(&ProtocolError{Reason: MalformedSection, Section: d.sections + 1, Err: err})
		}
		return false
	}
	d.sections++

	data, err := io.ReadAll(io.LimitReader(part, d.maxSize+1))
	if err != nil {
		if ctx.Err() != nil {
			d.cancel()
			return false
		}
		if d.closed.Load() {
			d.finish(nil)
			return false
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		d.finish(&ProtocolError{Reason: MalformedSection, Section: d.sections, Err: err})
		return false
	}
	if int64(len(data)) > d.maxSize {
		d.finish(&ProtocolError{Reason: MalformedSection, Section: d.sections, Err: ErrSectionTooLarge})
		return false
	}

	doc, err := parse(data)
	if err != nil {
		d.finish(&ProtocolError{Reason: MalformedSection, Section: d.sections, Err: err})
		return false
	}
	d.doc = doc
	return true
}

// cleanEnd reports whether err from NextPart marks the end of the stream
// rather than a section cut off in its headers. The reader wraps io.EOF when
// the input ends before a complete delimiter line, and returns it bare both
// after the closing delimiter and when a section's headers are truncated.
// The bare case is clean only if nothing but a delimiter followed the last
// section.
func (d *Decoder) cleanEnd(err error) bool {
	if !errors.Is(err, io.EOF) {
		return false
	}
	if err != io.EOF {
		return true
	}
	end := bytes.TrimRight(d.tail.buf, " \t\r\n")
	delim := "--" + d.boundary
	return bytes.HasSuffix(end, []byte(delim)) || bytes.HasSuffix(end, []byte(delim+"--"))
}

// tailReader keeps the last n bytes read from r.
type tailReader struct {
	r   io.Reader
	n   int
	buf []byte
}

func (t *tailReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.buf = append(t.buf, p[:n]...)
	if len(t.buf) > t.n {
		t.buf = append(t.buf[:0], t.buf[len(t.buf)-t.n:]...)
	}
	return n, err
}

func parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(bytes.TrimSpace(data)); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, errors.New("section has no root element")
	}
	return doc, nil
}

// Document returns the document read by the last successful Next.
func (d *Decoder) Document() *etree.Document {
	return d.doc
}

// Err returns the error that ended the stream, or nil for a clean end or a
// cancellation.
func (d *Decoder) Err() error {
	return d.err
}

// Cancelled reports whether the stream ended because its context was done.
func (d *Decoder) Cancelled() bool {
	return d.cancelled
}

// Sections returns the number of sections read so far.
func (d *Decoder) Sections() int {
	return d.sections
}

// Close releases the underlying body. Next returns false afterwards.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.closeErr = d.body.Close()
	})
	return d.closeErr
}

// All returns an iterator over the remaining documents. Breaking out of the
// loop closes the decoder. Check Err after the loop.
func (d *Decoder) All(ctx context.Context) iter.Seq[*etree.Document] {
	return func(yield func(*etree.Document) bool) {
		for d.Next(ctx) {
			if !yield(d.Document()) {
				d.finish(nil)
				return
			}
		}
	}
}

func (d *Decoder) cancel() {
	d.cancelled = true
	d.finish(nil)
}

func (d *Decoder) finish(err error) {
	d.exhausted = true
	d.err = err
	d.Close()
}
