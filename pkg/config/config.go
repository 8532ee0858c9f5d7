// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads and saves the mt settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/yeetrun/mt/pkg/fileutil"
)

const (
	// DefaultPath is where the config file lives unless --config says
	// otherwise.
	DefaultPath = "~/.mt/config.toml"

	configVersion = 1

	envPrefix = "MT_"
)

type Config struct {
	Version    int    `toml:"version,omitempty"`
	Agent      string `toml:"agent,omitempty" env:"AGENT"`
	Format     string `toml:"format,omitempty" env:"FORMAT"`
	HeaderOnly bool   `toml:"header_only,omitempty" env:"HEADER_ONLY"`
	Verbose    bool   `toml:"verbose,omitempty" env:"VERBOSE"`
	// Timeout is the request timeout in seconds. Zero disables it.
	Timeout   uint64 `toml:"timeout,omitempty" env:"TIMEOUT"`
	LogFile   string `toml:"log_file,omitempty" env:"LOG_FILE"`
	Transport string `toml:"transport,omitempty" env:"TRANSPORT"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Version:   configVersion,
		Format:    "Xml",
		Timeout:   30,
		Transport: "http",
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()
	path, err := fileutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Version == 0 {
		cfg.Version = configVersion
	}
	return cfg, nil
}

// ApplyEnv overrides settings with the MT_* variables that are set. A nil
// environment means the process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	opts := env.Options{Prefix: envPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	path, err := fileutil.ExpandHome(path)
	if err != nil {
		return err
	}
	if c.Version == 0 {
		c.Version = configVersion
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return err
	}
	return fileutil.WriteFile(path, buf.Bytes(), 0o644)
}
