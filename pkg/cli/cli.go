// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli implements the mt commands and the batch and interactive
// sessions that run them.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"golang.org/x/term"

	"github.com/yeetrun/mt/pkg/agent"
	"github.com/yeetrun/mt/pkg/command"
	"github.com/yeetrun/mt/pkg/config"
	"github.com/yeetrun/mt/pkg/render"
)

var errNoAgent = errors.New("no connection to an MTConnect agent has been configured")

const defaultWidth = 80

type Cli struct {
	reg  *command.Registry
	opts *command.Options

	cfg     *config.Config
	cfgPath string
	version string

	agentURL  string
	transport agent.Transport

	in      io.Reader
	scanner *bufio.Scanner
	stdout  io.Writer
	stderr  io.Writer
	prompt  bool

	logger    *log.Logger
	logCloser io.Closer
}

type Option func(*Cli)

// WithIO replaces the standard streams.
func WithIO(in io.Reader, stdout, stderr io.Writer) Option {
	return func(c *Cli) {
		c.in, c.stdout, c.stderr = in, stdout, stderr
	}
}

// WithConfigPath sets where SaveOptions writes.
func WithConfigPath(path string) Option {
	return func(c *Cli) { c.cfgPath = path }
}

func WithVersion(v string) Option {
	return func(c *Cli) { c.version = v }
}

// WithTransport sets the transport for single-document and HTTP streaming
// requests.
func WithTransport(t agent.Transport) Option {
	return func(c *Cli) { c.transport = t }
}

// New builds the command and option registries from cfg. When cfg names an
// agent the session starts connected to it.
func New(cfg *config.Config, opts ...Option) (*Cli, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Cli{
		cfg:     cfg,
		cfgPath: config.DefaultPath,
		version: "dev",
		in:      os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, o := range opts {
		o(c)
	}
	if f, ok := c.in.(*os.File); ok {
		c.prompt = term.IsTerminal(int(f.Fd()))
	}

	var err error
	if c.opts, err = newOptions(cfg); err != nil {
		return nil, err
	}

	c.logger, c.logCloser, err = newLogger(c.stderr, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	c.reg = command.NewRegistry(c.opts)
	if err := c.reg.RegisterAll(c); err != nil {
		return nil, err
	}
	c.reg.AddVersionCommand(c.stdout, "mt", c.version)
	c.reg.AddExitCommand()
	c.reg.AddHelpCommand(c.stdout)

	if cfg.Agent != "" {
		if _, err := agent.NewClient(cfg.Agent); err != nil {
			return nil, err
		}
		c.agentURL = cfg.Agent
	}
	return c, nil
}

// Close releases the log file.
func (c *Cli) Close() error {
	return c.logCloser.Close()
}

// Registry returns the command registry.
func (c *Cli) Registry() *command.Registry {
	return c.reg
}

// Run processes args as a batch. With no arguments it starts an interactive
// session.
func (c *Cli) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"Interactive"}
	}
	return c.ProcessToEnd(ctx, args)
}

// ProcessToEnd runs each command in args in turn until the arguments are used
// up, an unrecognized command is found, or Exit runs. A failing command is
// reported and the next one runs.
func (c *Cli) ProcessToEnd(ctx context.Context, args []string) error {
	for {
		inv, n, stop := c.parse(ctx, args)
		args = args[n:]
		if inv == nil {
			stop()
			if len(args) > 0 {
				fmt.Fprintln(c.stderr, "Parser Error!")
			}
			return nil
		}
		err := c.reg.Run(inv)
		stop()
		if errors.Is(err, command.ErrExit) {
			return nil
		}
		c.report(err)
	}
}

// interactive reads commands line by line until end of input or Exit.
func (c *Cli) interactive(ctx context.Context) error {
	if c.scanner == nil {
		c.scanner = bufio.NewScanner(c.in)
	}
	for {
		if c.prompt {
			fmt.Fprint(c.stdout, "> ")
		}
		if !c.scanner.Scan() {
			if c.prompt {
				fmt.Fprintln(c.stdout)
			}
			return c.scanner.Err()
		}
		tokens, err := SplitLine(c.scanner.Text())
		if err != nil {
			c.report(err)
			continue
		}
		for len(tokens) > 0 {
			inv, n, stop := c.parse(ctx, tokens)
			tokens = tokens[n:]
			if inv == nil {
				stop()
				fmt.Fprintln(c.stderr, "Unrecognized command.")
				break
			}
			err := c.reg.Run(inv)
			stop()
			if errors.Is(err, command.ErrExit) {
				return nil
			}
			c.report(err)
		}
	}
}

// parse parses the first command of args with a context that is cancelled
// by an interrupt, so Ctrl-C stops a streaming command and the session
// continues.
func (c *Cli) parse(ctx context.Context, args []string) (*command.Context, int, context.CancelFunc) {
	cmdCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	inv, n := c.reg.ParseFirst(cmdCtx, args, c.opts)
	return inv, n, stop
}

func (c *Cli) report(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(c.stderr, "Error: %v\n", err)
}

// logf logs when the Verbose option is set.
func (c *Cli) logf(format string, args ...any) {
	if c.verbose() {
		c.logger.Printf(format, args...)
	}
}

func (c *Cli) option(name string) any {
	v, err := c.opts.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

func (c *Cli) verbose() bool { return c.option("Verbose").(bool) }
func (c *Cli) headerOnly() bool { return c.option("HeaderOnly").(bool) }
func (c *Cli) format() render.Format { return c.option("Format").(render.Format) }
func (c *Cli) streamTransport() Transport { return c.option("Transport").(Transport) }
func (c *Cli) timeout() time.Duration {
	return time.Duration(c.option("Timeout").(uint64)) * time.Second
}

// client returns a client for the connected agent, configured from the
// current options.
func (c *Cli) client() (*agent.Client, error) {
	if c.agentURL == "" {
		return nil, errNoAgent
	}
	return c.newClient(c.agentURL)
}

func (c *Cli) newClient(uri string) (*agent.Client, error) {
	opts := []agent.Option{
		agent.WithTimeout(c.timeout()),
		agent.WithLogf(c.logf),
	}
	if c.transport != nil {
		opts = append(opts, agent.WithTransport(c.transport))
	}
	return agent.NewClient(uri, opts...)
}

func (c *Cli) printer() *render.Printer {
	return &render.Printer{W: c.stdout, Format: c.format(), HeaderOnly: c.headerOnly()}
}

// width is the terminal width for the Status banner.
func (c *Cli) width() int {
	if f, ok := c.stdout.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}
