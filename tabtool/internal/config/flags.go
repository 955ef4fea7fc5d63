// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"strconv"
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"
)

// Overrides collects the command line settings. They are applied on top of
// the configuration file, in the command line order.
type Overrides struct {
	File string
	sets []func(*Config)
}

func (o *Overrides) add(f func(*Config)) { o.sets = append(o.sets, f) }

// Apply applies the overrides to c.
func (o *Overrides) Apply(c *Config) {
	for _, set := range o.sets {
		set(c)
	}
}

// Resolve loads the configuration file (if any) and applies the overrides.
func (o *Overrides) Resolve() (Config, error) {
	cfg := Default()
	if o.File != "" {
		var err error
		if cfg, err = Load(o.File); err != nil {
			return Config{}, err
		}
	}
	o.Apply(&cfg)
	return cfg, cfg.Validate()
}

type uint32Value struct {
	o   *Overrides
	set func(*Config, uint32)
}

func (v uint32Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	v.o.add(func(c *Config) { v.set(c, uint32(n)) })
	return nil
}

func (v uint32Value) String() string { return "" }

type stringValue struct {
	o   *Overrides
	set func(*Config, string)
}

func (v stringValue) Set(s string) error {
	v.o.add(func(c *Config) { v.set(c, s) })
	return nil
}

func (v stringValue) String() string { return "" }

type boolValue struct {
	o   *Overrides
	set func(*Config, bool)
}

func (v boolValue) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	v.o.add(func(c *Config) { v.set(c, b) })
	return nil
}

func (v boolValue) String() string { return "" }

func (v boolValue) IsBoolFlag() bool { return true }

func ptr(n uint32) *uint32 { return &n }

// Register defines the packaging flags on cmd.
func (o *Overrides) Register(cmd *kingpin.CmdClause) {
	cmd.Flag("config", "TOML configuration file, the flags override its settings.").
		Short('c').PlaceHolder("FILE").StringVar(&o.File)
	cmd.Flag("output", "Output TAB file (default "+DefaultOutput+").").
		Short('o').PlaceHolder("FILE").SetValue(stringValue{o, func(c *Config, s string) { c.Output = s }})
	cmd.Flag("package-name", "Package name stored in the headers and used to name the archive entries.").
		Short('n').PlaceHolder("NAME").SetValue(stringValue{o, func(c *Config, s string) { c.PackageName = s }})
	cmd.Flag("stack", "App stack size in bytes (default 2048).").
		PlaceHolder("SIZE").SetValue(uint32Value{o, func(c *Config, n uint32) { c.StackSize = n }})
	cmd.Flag("app-heap", "App heap size in bytes (default 1024).").
		PlaceHolder("SIZE").SetValue(uint32Value{o, func(c *Config, n uint32) { c.AppHeapSize = n }})
	cmd.Flag("kernel-heap", "Kernel heap size for the app in bytes (default 1024).").
		PlaceHolder("SIZE").SetValue(uint32Value{o, func(c *Config, n uint32) { c.KernelHeapSize = n }})
	cmd.Flag("minimum-ram-size", "Minimum RAM size, derived from the ELF sections by default.").
		PlaceHolder("SIZE").SetValue(uint32Value{o, func(c *Config, n uint32) { c.MinimumRAMSize = ptr(n) }})
	cmd.Flag("protected-region-size", "Size of the protected region including the header.").
		PlaceHolder("SIZE").SetValue(uint32Value{o, func(c *Config, n uint32) { c.ProtectedRegionSize = ptr(n) }})
	cmd.Flag("fixed-address", "Flash address the package is placed at.").
		PlaceHolder("ADDR").SetValue(uint32Value{o, func(c *Config, n uint32) { c.FixedAddress = ptr(n) }})
	cmd.Flag("ram-align", "Alignment of the derived minimum RAM size (default 8).").
		PlaceHolder("N").SetValue(uint32Value{o, func(c *Config, n uint32) { c.RAMAlign = n }})
	cmd.Flag("power-of-two", "Pad the apps to a power of two size (default true).").
		SetValue(boolValue{o, func(c *Config, b bool) { c.PowerOfTwo = b }})
	cmd.Flag("sticky", "Mark the apps as sticky.").
		SetValue(boolValue{o, func(c *Config, b bool) { c.Sticky = b }})
	cmd.Flag("disabled", "Mark the apps as disabled.").
		SetValue(boolValue{o, func(c *Config, b bool) { c.Disabled = b }})
	cmd.Flag("deterministic", "Produce a reproducible archive (fixed timestamps, no build date).").
		SetValue(boolValue{o, func(c *Config, b bool) { c.Deterministic = b }})
	cmd.Flag("metadata", "Add metadata.toml as an extra archive entry (default true, --no-metadata leaves one entry per input).").
		SetValue(boolValue{o, func(c *Config, b bool) { c.Metadata = b }})
	boards := func(c *Config, s string) { c.OnlyForBoards = strings.Split(s, ",") }
	cmd.Flag("boards", "Comma separated list of the supported boards.").
		PlaceHolder("LIST").SetValue(stringValue{o, boards})
	cmd.Flag("parallel", "Number of inputs converted at the same time, 0 means all.").
		PlaceHolder("N").SetValue(uint32Value{o, func(c *Config, n uint32) { c.Parallel = int(n) }})
}
