// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tab

import (
	"bytes"
	"context"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/embeddedgo/tabtool/tabtool/internal/config"
	"github.com/embeddedgo/tabtool/tabtool/internal/pack"
	"github.com/embeddedgo/tabtool/tabtool/internal/storage"
	"github.com/embeddedgo/tabtool/tabtool/internal/tab"
	"github.com/embeddedgo/tabtool/tabtool/internal/util"
)

const Descr = "convert ELF files to TBF packages and bundle them in a TAB file"

func Register(cmd *kingpin.CmdClause) util.RunFunc {
	o := new(config.Overrides)
	o.Register(cmd)
	var inputs []string
	cmd.Arg("elf", "ELF files, one per architecture.").Required().StringsVar(&inputs)
	return func(ctx context.Context, logger log.Logger) error {
		return Run(ctx, afero.NewOsFs(), inputs, o, logger)
	}
}

// Run converts the inputs, writes a TBF file next to each of them and bundles
// the packages in the output TAB file.
func Run(ctx context.Context, fs afero.Fs, inputs []string, o *config.Overrides, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	cfg, err := o.Resolve()
	if err != nil {
		return err
	}
	if err := storage.CheckOutputs(inputs, cfg.Output); err != nil {
		return err
	}
	st := storage.New(fs)
	ins, err := st.ReadInputs(inputs)
	if err != nil {
		return err
	}

	p := pack.New(cfg.PackOptions(), logger)
	p.Concurrency = cfg.Parallel
	pkgs, err := p.PackageAll(ctx, ins)
	if err != nil {
		return err
	}

	var archive bytes.Buffer
	if err := tab.Assemble(&archive, pkgs, cfg.TabOptions()); err != nil {
		return errors.Wrap(err, "assemble failed")
	}
	for _, pkg := range pkgs {
		b, err := pkg.Bytes()
		if err != nil {
			return &pack.InputError{Input: pkg.Input, Err: err}
		}
		name := storage.PackagePath(pkg.Input)
		if err := st.WriteFile(name, b); err != nil {
			return err
		}
		level.Info(logger).Log(
			"msg", "package written",
			"file", name,
			"arch", pkg.Arch,
			"size", humanize.IBytes(uint64(len(b))),
		)
	}
	if err := st.WriteFile(cfg.Output, archive.Bytes()); err != nil {
		return err
	}
	level.Info(logger).Log(
		"msg", "archive written",
		"file", cfg.Output,
		"packages", len(pkgs),
		"size", humanize.IBytes(uint64(archive.Len())),
	)
	return nil
}
