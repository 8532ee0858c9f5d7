// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/beevik/etree"
)

// WebsocketMinVersion is the first schema version whose agents accept
// websocket streaming requests.
var WebsocketMinVersion = semver.MustParse("2.1.0")

// SchemaVersion returns the version reported in the document's Header. Agents
// report up to four components ("1.3.0.18"); only the first three are kept.
func SchemaVersion(doc *etree.Document) (*semver.Version, error) {
	if doc == nil || doc.Root() == nil {
		return nil, errors.New("empty document")
	}
	header := doc.Root().FindElement("Header")
	if header == nil {
		return nil, fmt.Errorf("%s document has no Header", doc.Root().Tag)
	}
	raw := header.SelectAttrValue("version", "")
	if raw == "" {
		return nil, errors.New("document Header has no version")
	}
	parts := strings.Split(raw, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, fmt.Errorf("invalid agent version %q: %w", raw, err)
	}
	return v, nil
}

// SupportsWebsocket reports whether an agent of version v accepts websocket
// streaming.
func SupportsWebsocket(v *semver.Version) bool {
	return v != nil && !v.LessThan(WebsocketMinVersion)
}
