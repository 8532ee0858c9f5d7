// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mt is a command line client for MTConnect agents.
//
// Arguments are processed as a batch of commands:
//
//	mt connect http://agent:5000 option format json current -category Samples
//
// With no commands, mt starts an interactive session.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shayne/yargs"

	"github.com/yeetrun/mt/pkg/cli"
	"github.com/yeetrun/mt/pkg/config"
)

// version is set by the linker.
var version = "dev"

type globalFlagsParsed struct {
	Config  string `flag:"config" help:"Config file (default ~/.mt/config.toml)"`
	Agent   string `flag:"agent" help:"Connect to the agent at startup (MT_AGENT)"`
	Verbose bool   `flag:"verbose" help:"Log each command and request (MT_VERBOSE)"`
	LogFile string `flag:"log-file" help:"Also write logs to a rotated file (MT_LOG_FILE)"`
}

// valueFlags take the following token as their value when not written as
// --flag=value.
var valueFlags = map[string]bool{
	"--config":   true,
	"--agent":    true,
	"--log-file": true,
}

// splitGlobalFlags separates the leading --flag tokens from the commands.
// Command names and their -arguments never start with "--".
func splitGlobalFlags(args []string) (flags, rest []string) {
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "--") {
		if valueFlags[args[i]] && i+1 < len(args) {
			i++
		}
		i++
	}
	return args[:i], args[i:]
}

func parseGlobalFlags(args []string) (globalFlagsParsed, []string, error) {
	flags, rest := splitGlobalFlags(args)
	result, err := yargs.ParseKnownFlags[globalFlagsParsed](flags, yargs.KnownFlagsOptions{})
	if err != nil {
		return globalFlagsParsed{}, nil, err
	}
	if len(result.RemainingArgs) > 0 {
		return globalFlagsParsed{}, nil, fmt.Errorf("unknown flag %q", result.RemainingArgs[0])
	}
	return result.Flags, rest, nil
}

func loadConfig(flags globalFlagsParsed) (*config.Config, string, error) {
	path := flags.Config
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, "", err
	}
	if flags.Agent != "" {
		cfg.Agent = flags.Agent
	}
	if flags.Verbose {
		cfg.Verbose = true
	}
	if flags.LogFile != "" {
		cfg.LogFile = flags.LogFile
	}
	return cfg, path, nil
}

func run(args []string) error {
	flags, rest, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return err
	}
	c, err := cli.New(cfg, cli.WithConfigPath(path), cli.WithVersion(version))
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Run(context.Background(), rest)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
