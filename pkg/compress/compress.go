// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding is the Accept-Encoding value sent to agents.
const AcceptEncoding = "zstd, gzip, deflate"

// NewReader returns a reader decoding r according to encoding. An empty or
// "identity" encoding returns r unchanged.
func NewReader(encoding string, r io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(r), nil
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gr, nil
	case "deflate":
		return flate.NewReader(r), nil
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	}
	return nil, fmt.Errorf("unsupported content encoding %q", encoding)
}

// DecompressResponse replaces resp.Body with a decoding reader when the
// response carries a Content-Encoding. Closing the new body closes both the
// decoder and the original body.
func DecompressResponse(resp *http.Response) error {
	encoding := resp.Header.Get("Content-Encoding")
	if encoding == "" {
		return nil
	}
	reader, err := NewReader(encoding, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to create decompressor for %s: %w", encoding, err)
	}

	resp.Body = &closeWrapper{
		ReadCloser: reader,
		onClose:    resp.Body.Close,
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// closeWrapper closes a decoder and then the body it reads from.
type closeWrapper struct {
	io.ReadCloser
	onClose func() error
}

func (cw *closeWrapper) Close() error {
	err1 := cw.ReadCloser.Close()
	err2 := cw.onClose()
	return errors.Join(err1, err2)
}

// SelectEncoding picks the encoding for a response from an Accept-Encoding
// header, honouring quality values. It returns "" when no supported encoding
// is acceptable.
func SelectEncoding(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}

	supported := make(map[string]float32)
	for _, enc := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(enc), ";")
		name = strings.TrimSpace(name)
		quality := float32(1.0)
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			var v float32
			if _, err := fmt.Sscanf(q, "%f", &v); err == nil {
				quality = v
			}
		}

		switch name {
		case "zstd", "gzip", "deflate":
			supported[name] = quality
		case "*":
			for _, n := range preference {
				if _, ok := supported[n]; !ok {
					supported[n] = quality
				}
			}
		}
	}

	best, bestQuality := "", float32(0)
	for _, n := range preference {
		if q, ok := supported[n]; ok && q > bestQuality {
			best, bestQuality = n, q
		}
	}
	return best
}

var preference = []string{"zstd", "gzip", "deflate"}

type flusher interface {
	Flush() error
}

// ResponseWriter compresses everything written to an http.ResponseWriter.
type ResponseWriter struct {
	http.ResponseWriter
	writer      io.Writer
	encoding    string
	wroteHeader bool
}

// NewResponseWriter wraps w for encoding. An unsupported or empty encoding
// writes through unchanged.
func NewResponseWriter(w http.ResponseWriter, encoding string) (*ResponseWriter, error) {
	cw := &ResponseWriter{
		ResponseWriter: w,
		encoding:       encoding,
	}

	var err error
	switch encoding {
	case "zstd":
		cw.writer, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	case "gzip":
		cw.writer = gzip.NewWriter(w)
	case "deflate":
		cw.writer, err = flate.NewWriter(w, flate.DefaultCompression)
	default:
		cw.writer = w
		cw.encoding = ""
	}
	if err != nil {
		return nil, err
	}
	return cw, nil
}

func (cw *ResponseWriter) Write(data []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.writer.Write(data)
}

func (cw *ResponseWriter) WriteHeader(code int) {
	if cw.wroteHeader {
		return
	}
	cw.wroteHeader = true
	if cw.encoding != "" {
		h := cw.ResponseWriter.Header()
		h.Set("Content-Encoding", cw.encoding)
		h.Del("Content-Length")
		h.Set("Vary", "Accept-Encoding")
	}
	cw.ResponseWriter.WriteHeader(code)
}

// Flush pushes buffered compressed data to the client.
func (cw *ResponseWriter) Flush() {
	if f, ok := cw.writer.(flusher); ok {
		_ = f.Flush()
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Close flushes and closes the compressor. It does not close the connection.
func (cw *ResponseWriter) Close() error {
	if closer, ok := cw.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
