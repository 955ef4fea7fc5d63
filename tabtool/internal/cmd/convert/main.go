// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package convert

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/embeddedgo/tabtool/tabtool/internal/flash"
	"github.com/embeddedgo/tabtool/tabtool/internal/storage"
	"github.com/embeddedgo/tabtool/tabtool/internal/util"
)

const Descr = "convert a TBF file to the Intel HEX or UF2 format"

type Params struct {
	Input   string
	Output  string
	Format  string
	Address *uint32
	Family  string
}

type addrValue struct{ p **uint32 }

func (v addrValue) Set(s string) error {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	a := uint32(n)
	*v.p = &a
	return nil
}

func (v addrValue) String() string { return "" }

func Register(cmd *kingpin.CmdClause) util.RunFunc {
	p := new(Params)
	cmd.Flag("format", "Output format.").Short('f').Default("hex").EnumVar(&p.Format, "hex", "uf2")
	cmd.Flag("address", "Flash address of the package, the fixed address from the header by default.").
		PlaceHolder("ADDR").SetValue(addrValue{&p.Address})
	cmd.Flag("family", "UF2 family name or ID, one of: "+strings.Join(flash.Families(), ", ")+".").
		PlaceHolder("FAMILY").StringVar(&p.Family)
	cmd.Flag("output", "Output file (default TBF name with the format extension).").
		Short('o').PlaceHolder("FILE").StringVar(&p.Output)
	cmd.Arg("tbf", "TBF file.").Required().StringVar(&p.Input)
	return func(ctx context.Context, logger log.Logger) error {
		return Run(afero.NewOsFs(), p, logger)
	}
}

// Run writes the package read from p.Input in the p.Format format.
func Run(fs afero.Fs, p *Params, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	st := storage.New(fs)
	pkg, err := st.ReadFile(p.Input)
	if err != nil {
		return err
	}
	addr, err := flash.Address(p.Address, pkg)
	if err != nil {
		return errors.Wrap(err, p.Input)
	}
	var out bytes.Buffer
	switch p.Format {
	case "", "hex":
		err = flash.WriteHex(&out, addr, pkg)
	case "uf2":
		var family uint32
		if p.Family == "" {
			util.Warn(logger, "no UF2 family given, blocks will not carry a family ID")
		} else if family, err = flash.Family(p.Family); err != nil {
			return err
		}
		err = flash.WriteUF2(&out, addr, family, pkg)
	default:
		return errors.Errorf("unknown format %q", p.Format)
	}
	if err != nil {
		return errors.Wrap(err, "convert failed")
	}
	ext := ".hex"
	if p.Format == "uf2" {
		ext = ".uf2"
	}
	name := util.OutName(p.Input, ".tbf", p.Output, ext)
	if err := st.WriteFile(name, out.Bytes()); err != nil {
		return err
	}
	level.Info(logger).Log(
		"msg", "converted",
		"file", name,
		"address", "0x"+strconv.FormatUint(uint64(addr), 16),
		"size", humanize.IBytes(uint64(len(pkg))),
	)
	return nil
}
