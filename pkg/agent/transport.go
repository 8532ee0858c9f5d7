// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/yeetrun/mt/pkg/compress"
)

// Response is the part of an agent response the client needs. Body must be
// closed by the caller.
type Response struct {
	StatusCode  int
	Status      string
	ContentType string
	Body        io.ReadCloser
}

// Transport issues GET requests to an agent.
type Transport interface {
	Do(ctx context.Context, uri string) (*Response, error)
}

// HTTPTransport is the default Transport. It asks for compressed responses
// and decodes them.
type HTTPTransport struct {
	// Client is used for requests. It must not set a Timeout, since streaming
	// responses stay open indefinitely; use the request context instead.
	Client *http.Client

	UserAgent string
}

func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		Client:    &http.Client{},
		UserAgent: "mt",
	}
}

func (t *HTTPTransport) Do(ctx context.Context, uri string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml, multipart/x-mixed-replace")
	req.Header.Set("Accept-Encoding", compress.AcceptEncoding)
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := compress.DecompressResponse(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		Status:      http.StatusText(resp.StatusCode),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}
