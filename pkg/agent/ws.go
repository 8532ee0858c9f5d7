// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yeetrun/mt/pkg/stream"
)

// wsURL returns the websocket endpoint of the agent.
func (c *Client) wsURL() string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// dialStream opens a websocket and sends one streaming request. The agent
// answers with one document per message.
func (c *Client) dialStream(ctx context.Context, request, device string, q Query) (*WSStream, error) {
	uri := c.wsURL()
	c.logf("WS %s %s %s", uri, request, q.Encode())

	msg := q.params()
	msg["id"] = uuid.NewString()
	msg["request"] = request
	if device != "" {
		msg["device"] = device
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	dialer := c.dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, uri, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &StatusError{Code: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
		}
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		conn.Close()
		return nil, err
	}
	return &WSStream{conn: conn, id: msg["id"].(string)}, nil
}

// WSStream reads documents from a websocket streaming request.
type WSStream struct {
	conn *websocket.Conn
	id   string

	doc       *etree.Document
	err       error
	messages  int
	exhausted bool
	cancelled bool

	closeOnce sync.Once
	closeErr  error
}

// RequestID returns the id sent with the streaming request.
func (s *WSStream) RequestID() string {
	return s.id
}

func (s *WSStream) Next(ctx context.Context) bool {
	if s.exhausted {
		return false
	}
	if ctx.Err() != nil {
		s.cancelled = true
		s.finish(nil)
		return false
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
			_ = s.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				s.cancelled = true
				s.finish(nil)
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
				errors.Is(err, websocket.ErrCloseSent):
				s.finish(nil)
			default:
				s.finish(err)
			}
			return false
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.messages++
		doc, err := ParseDocument(data)
		if err != nil {
			s.finish(&stream.ProtocolError{Reason: stream.MalformedSection, Section: s.messages, Err: err})
			return false
		}
		s.doc = doc
		return true
	}
}

func (s *WSStream) Document() *etree.Document {
	return s.doc
}

func (s *WSStream) Err() error {
	return s.err
}

func (s *WSStream) Cancelled() bool {
	return s.cancelled
}

func (s *WSStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *WSStream) finish(err error) {
	s.exhausted = true
	if err != nil {
		s.err = fmt.Errorf("websocket stream: %w", err)
	}
	s.Close()
}
