// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"strconv"

	"github.com/yeetrun/mt/pkg/agent"
	"github.com/yeetrun/mt/pkg/command"
	"github.com/yeetrun/mt/pkg/config"
	"github.com/yeetrun/mt/pkg/render"
)

// Transport selects how streaming requests reach the agent.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportWS   Transport = "ws"
)

func (t Transport) via() agent.Via {
	if t == TransportWS {
		return agent.ViaWebsocket
	}
	return agent.ViaHTTP
}

// Options backs the option registry. Commands read it only through the
// registry.
type Options struct {
	Verbose    bool
	HeaderOnly bool
	Format     render.Format
	Transport  Transport
	Timeout    uint64
}

func (o *Options) specs() []command.OptionSpec {
	return []command.OptionSpec{
		command.BoolVar(&o.Verbose, "Verbose", "Log each command and request."),
		command.BoolVar(&o.HeaderOnly, "HeaderOnly", "Output only the Header of documents."),
		command.EnumVar(&o.Format, "Format", "Output format.", render.Formats...),
		command.EnumVar(&o.Transport, "Transport", "Transport for streaming requests.", TransportHTTP, TransportWS),
		command.UintVar(&o.Timeout, "Timeout", "Request timeout in seconds, 0 for none."),
	}
}

// newOptions registers the options, backed by a new Options, and seeds them
// from cfg. Settings go through the registry so they are validated like the
// Option command.
func newOptions(cfg *config.Config) (*command.Options, error) {
	o := &Options{Format: render.Xml, Transport: TransportHTTP}
	reg, err := command.NewOptions(o.specs()...)
	if err != nil {
		return nil, err
	}
	settings := map[string]string{
		"Verbose":    strconv.FormatBool(cfg.Verbose),
		"HeaderOnly": strconv.FormatBool(cfg.HeaderOnly),
		"Timeout":    strconv.FormatUint(cfg.Timeout, 10),
		"Format":     cfg.Format,
		"Transport":  cfg.Transport,
	}
	for _, name := range []string{"Verbose", "HeaderOnly", "Timeout", "Format", "Transport"} {
		if settings[name] == "" {
			continue
		}
		if err := reg.Set(name, settings[name]); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
