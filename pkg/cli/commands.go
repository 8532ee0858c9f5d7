// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/sync/errgroup"

	"github.com/yeetrun/mt/pkg/agent"
	"github.com/yeetrun/mt/pkg/command"
	"github.com/yeetrun/mt/pkg/filter"
	"github.com/yeetrun/mt/pkg/render"
)

var categoryType = command.Enum("Category", "Samples", "Events", "Condition")

// filterParams are the element filters shared by Current and Sample.
func filterParams() []command.Param {
	return []command.Param{
		command.Named("category", categoryType),
		command.Named("id", command.String).Describe("data item id"),
		command.Named("name", command.String).Describe("data item name"),
		command.Named("type", command.String).Describe("data item type"),
		command.Named("subType", command.String).Describe("data item subType"),
		command.Named("filter", command.String).Describe("key=value;... filter"),
	}
}

func filterSet(v command.Values) filter.Set {
	return filter.Set{
		Category: filter.Category(v.String("category")),
		ID:       v.String("id"),
		Name:     v.String("name"),
		Type:     v.String("type"),
		SubType:  v.String("subType"),
		Expr:     v.String("filter"),
	}
}

func uintArg(v command.Values, name string) *uint64 {
	if n, ok := command.Get[uint64](v, name); ok {
		return &n
	}
	return nil
}

func (c *Cli) Commands() []command.Spec {
	return []command.Spec{
		{
			Handler:     c.Connect,
			Description: "Specifies the URI of the MTConnect agent.",
			Params:      []command.Param{command.Pos(0, "agentUri", command.String)},
		},
		{
			Handler:     c.Test,
			Description: "Tests whether the URI is a valid MTConnect agent.",
			Params:      []command.Param{command.Pos(0, "agentUri", command.String)},
		},
		{
			Handler:     c.Interactive,
			Description: "Enters interactive mode.",
		},
		{
			Handler:     c.Option,
			Description: "Sets an option specified by a key to a value.",
			Params: []command.Param{
				command.Pos(0, "key", command.String),
				command.Pos(1, "value", command.String),
			},
		},
		{
			Handler:     c.ShowOptions,
			Description: "Show current value of all options.",
		},
		{
			Handler:     c.SaveOptions,
			Description: "Saves the agent and options to the config file.",
		},
		{
			Handler:     c.Clear,
			Description: "Clears the screen.",
		},
		{
			Handler:     c.Probe,
			Description: "Sends a probe request to the MTConnect agent.",
			Params:      []command.Param{command.Named("deviceName", command.String)},
		},
		{
			Handler:     c.Current,
			Description: "Sends a current request to the MTConnect agent.",
			Params: append([]command.Param{
				command.Named("deviceName", command.String),
				command.Named("at", command.Nullable(command.Uint)),
				command.Named("path", command.String),
				command.Named("interval", command.Nullable(command.Uint)),
			}, filterParams()...),
		},
		{
			Handler:     c.Sample,
			Description: "Sends a sample request to the MTConnect agent.",
			Params: append([]command.Param{
				command.Named("deviceName", command.String),
				command.Named("from", command.Nullable(command.Uint)),
				command.Named("path", command.String),
				command.Named("interval", command.Nullable(command.Uint)),
				command.Named("count", command.Nullable(command.Uint)),
			}, filterParams()...),
		},
		{
			Handler:     c.Asset,
			Description: "Sends an asset request to the MTConnect agent.",
			Params: []command.Param{
				command.Named("assetId", command.String),
				command.Named("type", command.String),
				command.Named("removed", command.Nullable(command.Bool)),
				command.Named("count", command.Nullable(command.Uint)),
			},
		},
		{
			Handler:     c.Status,
			Description: "Displays basic status of all devices.",
		},
	}
}

func (c *Cli) Connect(ctx context.Context, v command.Values) error {
	uri := v.String("agentUri")
	c.logf("CONNECT %s", uri)
	if _, err := c.newClient(uri); err != nil {
		return err
	}
	c.agentURL = agent.NormalizeURL(uri)
	return nil
}

// Test probes the agent and asks for its current state in parallel. Both
// must answer with MTConnect documents.
func (c *Cli) Test(ctx context.Context, v command.Values) error {
	uri := v.String("agentUri")
	c.logf("TEST %s", uri)
	client, err := c.newClient(uri)
	if err != nil {
		return err
	}

	var probe, current *etree.Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		probe, err = client.Probe(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		current, err = client.Current(gctx, agent.CurrentRequest{})
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if probe.Root().Tag != "MTConnectDevices" {
		return errors.New("probe did not return an MTConnectDevices document, not an MTConnect agent")
	}
	if current.Root().Tag != "MTConnectStreams" {
		return errors.New("current did not return an MTConnectStreams document, not an MTConnect agent")
	}

	fmt.Fprintln(c.stdout, "OK")
	version, err := agent.SchemaVersion(probe)
	if err != nil {
		c.logf("TEST %s: %v", uri, err)
		return nil
	}
	c.logf("TEST %s: MTConnect %s", uri, version)
	if c.streamTransport() == TransportWS && !agent.SupportsWebsocket(version) {
		fmt.Fprintf(c.stderr, "Warning: agent version %s does not support websocket streaming (needs %s)\n", version, agent.WebsocketMinVersion)
	}
	return nil
}

func (c *Cli) Interactive(ctx context.Context, v command.Values) error {
	c.logf("INTERACTIVE")
	// Interrupts stop the running command, not the session.
	return c.interactive(context.WithoutCancel(ctx))
}

func (c *Cli) Option(ctx context.Context, v command.Values) error {
	key, value := v.String("key"), v.String("value")
	c.logf("OPTION %s=%s", key, value)
	return c.opts.Set(key, value)
}

func (c *Cli) ShowOptions(ctx context.Context, v command.Values) error {
	c.logf("SHOWOPTIONS")
	for _, o := range c.opts.All() {
		fmt.Fprintf(c.stdout, "%s: %v\n", o.Name, o.Value())
	}
	return nil
}

// SaveOptions writes the connected agent and the option values to the config
// file, keeping the settings that are not options.
func (c *Cli) SaveOptions(ctx context.Context, v command.Values) error {
	c.logf("SAVEOPTIONS %s", c.cfgPath)
	cfg := *c.cfg
	cfg.Agent = c.agentURL
	cfg.Verbose = c.verbose()
	cfg.HeaderOnly = c.headerOnly()
	cfg.Format = string(c.format())
	cfg.Transport = string(c.streamTransport())
	cfg.Timeout = c.option("Timeout").(uint64)
	if err := cfg.Save(c.cfgPath); err != nil {
		return err
	}
	*c.cfg = cfg
	fmt.Fprintf(c.stdout, "Saved options to %s\n", c.cfgPath)
	return nil
}

func (c *Cli) Clear(ctx context.Context, v command.Values) error {
	c.logf("CLEAR")
	_, err := fmt.Fprint(c.stdout, "\x1b[H\x1b[2J")
	return err
}

func (c *Cli) Probe(ctx context.Context, v command.Values) error {
	device := v.String("deviceName")
	c.logf("PROBE %s", device)
	client, err := c.client()
	if err != nil {
		return err
	}
	doc, err := client.Probe(ctx, device)
	if err != nil {
		return err
	}
	return c.output(doc, filter.Set{})
}

func (c *Cli) Current(ctx context.Context, v command.Values) error {
	req := agent.CurrentRequest{
		Device: v.String("deviceName"),
		At:     uintArg(v, "at"),
		Path:   v.String("path"),
	}
	interval := v.Uint("interval", 0)
	c.logf("CURRENT %s", invocationArgs(v))
	client, err := c.client()
	if err != nil {
		return err
	}
	set := filterSet(v)
	if interval > 0 {
		s, err := client.CurrentStream(ctx, req, interval, c.streamTransport().via())
		if err != nil {
			return err
		}
		return c.outputStream(ctx, s, set)
	}
	doc, err := client.Current(ctx, req)
	if err != nil {
		return err
	}
	return c.output(doc, set)
}

func (c *Cli) Sample(ctx context.Context, v command.Values) error {
	req := agent.SampleRequest{
		Device: v.String("deviceName"),
		From:   uintArg(v, "from"),
		Path:   v.String("path"),
		Count:  uintArg(v, "count"),
	}
	interval := v.Uint("interval", 0)
	c.logf("SAMPLE %s", invocationArgs(v))
	client, err := c.client()
	if err != nil {
		return err
	}
	set := filterSet(v)
	if interval > 0 {
		s, err := client.SampleStream(ctx, req, interval, c.streamTransport().via())
		if err != nil {
			return err
		}
		return c.outputStream(ctx, s, set)
	}
	doc, err := client.Sample(ctx, req)
	if err != nil {
		return err
	}
	return c.output(doc, set)
}

func (c *Cli) Asset(ctx context.Context, v command.Values) error {
	req := agent.AssetRequest{
		ID:    v.String("assetId"),
		Type:  v.String("type"),
		Count: uintArg(v, "count"),
	}
	if b, ok := command.Get[bool](v, "removed"); ok {
		req.Removed = &b
	}
	c.logf("ASSET %s", invocationArgs(v))
	client, err := c.client()
	if err != nil {
		return err
	}
	doc, err := client.Asset(ctx, req)
	if err != nil {
		return err
	}
	return c.output(doc, filter.Set{})
}

func (c *Cli) Status(ctx context.Context, v command.Values) error {
	c.logf("STATUS")
	client, err := c.client()
	if err != nil {
		return err
	}
	doc, err := client.Current(ctx, agent.CurrentRequest{})
	if err != nil {
		return err
	}
	render.Status(c.stdout, doc, c.width())
	return nil
}

// output writes doc whole when set selects nothing, else the selected
// elements.
func (c *Cli) output(doc *etree.Document, set filter.Set) error {
	filters, err := set.Filters()
	if err != nil {
		return err
	}
	p := c.printer()
	if len(filters) == 0 {
		return p.Document(doc)
	}
	return p.Elements(filter.Chain(doc.Root(), filters...))
}

// outputStream writes each document of s until the stream ends or ctx is
// cancelled.
func (c *Cli) outputStream(ctx context.Context, s agent.DocumentStream, set filter.Set) error {
	defer s.Close()
	for s.Next(ctx) {
		doc := s.Document()
		if err := agent.CheckErrors(doc); err != nil {
			return err
		}
		if err := c.output(doc, set); err != nil {
			return err
		}
	}
	return s.Err()
}

// invocationArgs renders the named arguments of an invocation for verbose
// logs, e.g. "path=//Axes interval=1000".
func invocationArgs(v command.Values) string {
	inv := v.Invocation()
	if inv == nil {
		return ""
	}
	named := inv.NamedArgs()
	keys := make([]string, 0, len(named))
	for k := range named {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+named[k])
	}
	return strings.Join(parts, " ")
}
