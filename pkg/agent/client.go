// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package agent is a client for MTConnect agents.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/gorilla/websocket"

	"github.com/yeetrun/mt/pkg/stream"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 1 << 20

// DocumentStream is a sequence of documents from one streaming request.
// *stream.Decoder and *WSStream implement it.
type DocumentStream interface {
	Next(ctx context.Context) bool
	Document() *etree.Document
	Err() error
	Cancelled() bool
	Close() error
}

// Via selects how streaming requests are carried.
type Via int

const (
	// ViaHTTP uses a multipart/x-mixed-replace response.
	ViaHTTP Via = iota
	// ViaWebsocket uses a websocket connection, one document per message.
	ViaWebsocket
)

type Client struct {
	base      *url.URL
	transport Transport
	dialer    *websocket.Dialer
	timeout   time.Duration
	maxSize   int64
	logf      func(format string, args ...any)
}

type Option func(*Client)

func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithTimeout bounds single-document requests. Streaming requests run until
// their context is done.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithMaxSectionSize(n int64) Option {
	return func(c *Client) { c.maxSize = n }
}

// WithLogf sets a logger for request URIs.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(c *Client) { c.logf = logf }
}

// NormalizeURL adds the http scheme to a bare host[:port][/path].
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	return raw
}

func NewClient(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(NormalizeURL(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid agent url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid agent url %q: unsupported scheme %q", rawURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid agent url %q: missing host", rawURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	c := &Client{
		base:      u,
		transport: NewHTTPTransport(),
		dialer:    websocket.DefaultDialer,
		maxSize:   stream.DefaultMaxSectionSize,
		logf:      func(string, ...any) {},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the agent's base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// URI joins the non-empty segments onto the base path and appends the query.
func (c *Client) URI(q Query, segments ...string) string {
	u := *c.base
	parts := []string{u.Path}
	for _, s := range segments {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	u.Path = path.Join(parts...)
	if u.Path == "." {
		u.Path = ""
	}
	if len(segments) > 0 && !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	u.RawPath = ""
	u.RawQuery = q.Encode()
	return u.String()
}

// Query collects request parameters, skipping absent values.
type Query struct {
	v url.Values
}

func (q *Query) set(key, value string) {
	if q.v == nil {
		q.v = url.Values{}
	}
	q.v.Set(key, value)
}

// AddString adds key=value when value is not empty.
func (q *Query) AddString(key, value string) {
	if value != "" {
		q.set(key, value)
	}
}

// AddUint adds key=*value when value is not nil.
func (q *Query) AddUint(key string, value *uint64) {
	if value != nil {
		q.set(key, strconv.FormatUint(*value, 10))
	}
}

// AddBool adds key=*value when value is not nil.
func (q *Query) AddBool(key string, value *bool) {
	if value != nil {
		q.set(key, strconv.FormatBool(*value))
	}
}

func (q Query) Encode() string {
	return q.v.Encode()
}

// params returns the query as JSON-friendly values for websocket requests.
func (q Query) params() map[string]any {
	out := make(map[string]any, len(q.v))
	for k := range q.v {
		v := q.v.Get(k)
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			out[k] = n
		} else {
			out[k] = v
		}
	}
	return out
}

type CurrentRequest struct {
	Device string
	At     *uint64
	Path   string
}

func (r CurrentRequest) query() Query {
	var q Query
	q.AddUint("at", r.At)
	q.AddString("path", r.Path)
	return q
}

type SampleRequest struct {
	Device string
	From   *uint64
	Path   string
	Count  *uint64
}

func (r SampleRequest) query() Query {
	var q Query
	q.AddUint("from", r.From)
	q.AddString("path", r.Path)
	q.AddUint("count", r.Count)
	return q
}

type AssetRequest struct {
	ID      string
	Type    string
	Removed *bool
	Count   *uint64
}

func (c *Client) Probe(ctx context.Context, device string) (*etree.Document, error) {
	return c.get(ctx, c.URI(Query{}, device, "probe"))
}

func (c *Client) Current(ctx context.Context, req CurrentRequest) (*etree.Document, error) {
	return c.get(ctx, c.URI(req.query(), req.Device, "current"))
}

func (c *Client) Sample(ctx context.Context, req SampleRequest) (*etree.Document, error) {
	return c.get(ctx, c.URI(req.query(), req.Device, "sample"))
}

func (c *Client) Asset(ctx context.Context, req AssetRequest) (*etree.Document, error) {
	var q Query
	q.AddString("type", req.Type)
	q.AddBool("removed", req.Removed)
	q.AddUint("count", req.Count)
	if strings.TrimSpace(req.ID) == "" {
		return c.get(ctx, c.URI(q, "assets"))
	}
	return c.get(ctx, c.URI(q, "asset", req.ID))
}

// CurrentStream requests a current document every interval milliseconds.
func (c *Client) CurrentStream(ctx context.Context, req CurrentRequest, interval uint64, via Via) (DocumentStream, error) {
	q := req.query()
	q.AddUint("interval", &interval)
	if via == ViaWebsocket {
		return c.dialStream(ctx, "current", req.Device, q)
	}
	return c.openStream(ctx, c.URI(q, req.Device, "current"))
}

// SampleStream requests the samples since the last document every interval
// milliseconds.
func (c *Client) SampleStream(ctx context.Context, req SampleRequest, interval uint64, via Via) (DocumentStream, error) {
	q := req.query()
	q.AddUint("interval", &interval)
	if via == ViaWebsocket {
		return c.dialStream(ctx, "sample", req.Device, q)
	}
	return c.openStream(ctx, c.URI(q, req.Device, "sample"))
}

func (c *Client) get(ctx context.Context, uri string) (*etree.Document, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	c.logf("GET %s", uri)
	resp, err := c.transport.Do(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return nil, statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse response from %s: %w", uri, err)
	}
	if err := CheckErrors(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) openStream(ctx context.Context, uri string) (DocumentStream, error) {
	c.logf("GET %s", uri)
	resp, err := c.transport.Do(ctx, uri)
	if err != nil {
		return nil, err
	}
	if !success(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	if mt, _, err := mime.ParseMediaType(resp.ContentType); err == nil && !strings.HasPrefix(mt, "multipart/") {
		// A single document instead of a stream is how agents report a
		// rejected request.
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if doc, err := ParseDocument(data); err == nil {
			if err := CheckErrors(doc); err != nil {
				return nil, err
			}
		}
		return nil, &stream.ProtocolError{Reason: stream.MissingBoundary, Err: fmt.Errorf("unexpected content type %q", mt)}
	}
	dec, err := stream.NewDecoder(resp.Body, resp.ContentType, stream.WithMaxSectionSize(c.maxSize))
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return dec, nil
}

func success(code int) bool {
	return code >= 200 && code < 300
}

func statusError(resp *Response) error {
	se := &StatusError{Code: resp.StatusCode, Reason: resp.Status}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if doc, err := ParseDocument(data); err == nil {
		var ed *ErrorsDocument
		if errors.As(CheckErrors(doc), &ed) {
			se.Errors = ed
		}
	}
	return se
}

// ParseDocument parses one agent XML document.
func ParseDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(bytes.TrimSpace(data)); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, errors.New("response has no root element")
	}
	return doc, nil
}
