// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the settings shared by all inputs of one tabtool
// invocation.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/embeddedgo/tabtool/tabtool/internal/pack"
	"github.com/embeddedgo/tabtool/tabtool/internal/tab"
	"github.com/embeddedgo/tabtool/tabtool/internal/tbf"
)

const (
	DefaultStackSize      = 2048
	DefaultAppHeapSize    = 1024
	DefaultKernelHeapSize = 1024
	DefaultOutput         = "TockApp.tab"
)

var (
	ErrBadRAMAlign   = errors.New("config: ram-align must be a power of two")
	ErrBadName       = errors.New("config: invalid package name")
	ErrNoOutput      = errors.New("config: no output file")
	ErrBadParallel   = errors.New("config: parallel must not be negative")
	ErrUnknownConfig = errors.New("config: unknown key")
)

type Config struct {
	Output              string   `toml:"output"`
	PackageName         string   `toml:"package-name"`
	StackSize           uint32   `toml:"stack"`
	AppHeapSize         uint32   `toml:"app-heap"`
	KernelHeapSize      uint32   `toml:"kernel-heap"`
	MinimumRAMSize      *uint32  `toml:"minimum-ram-size"`
	ProtectedRegionSize *uint32  `toml:"protected-region-size"`
	FixedAddress        *uint32  `toml:"fixed-address"`
	RAMAlign            uint32   `toml:"ram-align"`
	PowerOfTwo          bool     `toml:"power-of-two"`
	Sticky              bool     `toml:"sticky"`
	Disabled            bool     `toml:"disabled"`
	Deterministic       bool     `toml:"deterministic"`
	Metadata            bool     `toml:"metadata"`
	OnlyForBoards       []string `toml:"only-for-boards"`
	Parallel            int      `toml:"parallel"`
}

func Default() Config {
	return Config{
		Output:         DefaultOutput,
		StackSize:      DefaultStackSize,
		AppHeapSize:    DefaultAppHeapSize,
		KernelHeapSize: DefaultKernelHeapSize,
		RAMAlign:       tbf.DefaultRAMAlign,
		PowerOfTwo:     true,
		Metadata:       true,
	}
}

// Load reads the TOML file at path on top of the default configuration.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config parse failed (%s)", path)
	}
	if keys := md.Undecoded(); len(keys) != 0 {
		ks := make([]string, len(keys))
		for i, k := range keys {
			ks[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w in %s: %s", ErrUnknownConfig, path, strings.Join(ks, ", "))
	}
	return cfg, nil
}

// Validate returns all problems found in the configuration.
func (c *Config) Validate() error {
	var err error
	if c.RAMAlign == 0 || c.RAMAlign&(c.RAMAlign-1) != 0 {
		err = multierror.Append(err, fmt.Errorf("%w: %d", ErrBadRAMAlign, c.RAMAlign))
	}
	if strings.ContainsAny(c.PackageName, "/\\\x00") || len(c.PackageName) > 0xffff {
		err = multierror.Append(err, fmt.Errorf("%w: %q", ErrBadName, c.PackageName))
	}
	if c.Output == "" {
		err = multierror.Append(err, ErrNoOutput)
	}
	if c.Parallel < 0 {
		err = multierror.Append(err, ErrBadParallel)
	}
	return err
}

func (c *Config) PackOptions() pack.Options {
	return pack.Options{
		StackSize:           c.StackSize,
		AppHeapSize:         c.AppHeapSize,
		KernelHeapSize:      c.KernelHeapSize,
		MinimumRAMSize:      c.MinimumRAMSize,
		ProtectedRegionSize: c.ProtectedRegionSize,
		RAMAlign:            c.RAMAlign,
		PackageName:         c.PackageName,
		FixedAddress:        c.FixedAddress,
		PowerOfTwo:          c.PowerOfTwo,
		Sticky:              c.Sticky,
		Disabled:            c.Disabled,
	}
}

func (c *Config) TabOptions() tab.Options {
	return tab.Options{
		Deterministic: c.Deterministic,
		Metadata:      c.Metadata,
		PackageName:   c.PackageName,
		OnlyForBoards: c.OnlyForBoards,
	}
}
