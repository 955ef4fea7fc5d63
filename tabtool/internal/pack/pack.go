// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pack converts a linked ELF executable into a TBF package.
package pack

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/embeddedgo/tabtool/tabtool/internal/layout"
	"github.com/embeddedgo/tabtool/tabtool/internal/object"
	"github.com/embeddedgo/tabtool/tabtool/internal/tbf"
)

// Input is one ELF file. ID identifies its source (usually a path).
type Input struct {
	ID   string
	Data []byte
}

// Arch returns the architecture tag of the input: the base name of its ID
// without the extension.
func (in Input) Arch() string {
	base := path.Base(strings.ReplaceAll(in.ID, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Package is a TBF header and everything that follows it up to the total size.
type Package struct {
	Input  string
	Arch   string
	Header *tbf.Header
	Image  []byte
}

// Bytes returns the encoded package.
func (p *Package) Bytes() ([]byte, error) {
	h, err := p.Header.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(h, p.Image...), nil
}

// InputError tags an error with the input that caused it.
type InputError struct {
	Input string
	Err   error
}

func (e *InputError) Error() string { return e.Input + ": " + e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

type Options struct {
	StackSize           uint32
	AppHeapSize         uint32
	KernelHeapSize      uint32
	MinimumRAMSize      *uint32
	ProtectedRegionSize *uint32
	RAMAlign            uint32
	PackageName         string
	FixedAddress        *uint32
	PowerOfTwo          bool
	Sticky              bool
	Disabled            bool
}

type Packager struct {
	Options
	Policy layout.Policy
	Logger log.Logger

	// Concurrency limits the number of inputs processed at the same time by
	// PackageAll. Zero means no limit.
	Concurrency int
}

func New(o Options, logger log.Logger) *Packager {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Packager{Options: o, Policy: layout.DefaultPolicy(), Logger: logger}
}

func (p *Packager) logger() log.Logger {
	if p.Logger == nil {
		return log.NewNopLogger()
	}
	return p.Logger
}

// Package converts one input.
func (p *Packager) Package(in Input) (*Package, error) {
	pkg, err := p.pack(in)
	if err != nil {
		return nil, &InputError{in.ID, err}
	}
	return pkg, nil
}

func (p *Packager) pack(in Input) (*Package, error) {
	logger := log.With(p.logger(), "input", in.ID)
	f, err := object.Read(in.Data)
	if err != nil {
		return nil, errors.Wrap(err, "read object")
	}
	policy := p.Policy
	if policy.Rules == nil {
		policy = layout.DefaultPolicy()
	}
	sel, err := layout.Select(f.Sections, policy)
	if err != nil {
		return nil, errors.Wrap(err, "select sections")
	}
	level.Debug(logger).Log(
		"msg", "selected sections", "machine", f.Machine,
		"primary", len(sel.Primary), "relocation", len(sel.Secondary),
		"persistent", len(sel.Persistent), "ram_only", humanize.Bytes(sel.RAMOnlySize()),
	)
	im, err := layout.Build(f.Bytes(), sel, logger)
	if err != nil {
		return nil, errors.Wrap(err, "build image")
	}
	initFn, err := initFnOffset(f, im)
	if err != nil {
		return nil, err
	}

	params := &tbf.Params{
		StackSize:           p.StackSize,
		AppHeapSize:         p.AppHeapSize,
		KernelHeapSize:      p.KernelHeapSize,
		MinimumRAMSize:      p.MinimumRAMSize,
		RAMOnlySize:         sel.RAMOnlySize(),
		RAMAlign:            p.RAMAlign,
		ProtectedRegionSize: p.ProtectedRegionSize,
		ImageLen:            uint32(len(im.Bytes)),
		PackageName:         p.PackageName,
		FixedAddress:        p.FixedAddress,
		InitFnOffset:        initFn,
		Flags:               p.flags(),
		PowerOfTwo:          p.PowerOfTwo,
	}
	for _, r := range im.Regions {
		params.Regions = append(params.Regions, tbf.FlashRegion{Offset: r.Offset, Size: r.Size})
	}
	h, err := tbf.Synthesize(params)
	if err != nil {
		return nil, errors.Wrap(err, "synthesize header")
	}

	// Everything after the header: the rest of the protected region, the
	// image and the padding up to the total size.
	body := make([]byte, h.TotalSize-uint32(h.HeaderSize))
	copy(body[h.ProtectedRegionSize()-uint32(h.HeaderSize):], im.Bytes)

	level.Debug(logger).Log(
		"msg", "created package", "arch", in.Arch(),
		"header", h.HeaderSize, "image", humanize.Bytes(uint64(len(im.Bytes))),
		"total", humanize.Bytes(uint64(h.TotalSize)),
	)
	return &Package{Input: in.ID, Arch: in.Arch(), Header: h, Image: body}, nil
}

func (p *Packager) flags() (f tbf.Flags) {
	if !p.Disabled {
		f |= tbf.FlagEnabled
	}
	if p.Sticky {
		f |= tbf.FlagSticky
	}
	return
}

// initFnOffset returns the offset of the entry point relative to the
// beginning of the image.
func initFnOffset(f *object.File, im *layout.Image) (uint32, error) {
	s, err := f.EntrySection()
	if err != nil || s == nil {
		return 0, err
	}
	off, ok := im.Offset(s)
	if !ok {
		return 0, fmt.Errorf(
			"%w: entry point %#x in section '%s' which is not in the image",
			object.ErrMalformedObject, f.Entry, s.Name,
		)
	}
	return off + uint32(f.Entry-s.Addr), nil
}

// PackageAll converts all inputs. The returned packages are in the input
// order. If any input fails the returned error describes all failures.
func (p *Packager) PackageAll(ctx context.Context, inputs []Input) ([]*Package, error) {
	pkgs := make([]*Package, len(inputs))
	errs := make([]error, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	if p.Concurrency > 0 {
		g.SetLimit(p.Concurrency)
	}
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = &InputError{in.ID, err}
				return nil
			}
			pkgs[i], errs[i] = p.Package(in)
			return nil
		})
	}
	g.Wait()
	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return pkgs, nil
}
